package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfarm/internal/core"
	"github.com/orrn/printfarm/internal/db"
	"github.com/orrn/printfarm/internal/metrics"
)

type CreateJobRequest struct {
	Name   string `json:"name" binding:"required"`
	UserID int64  `json:"user_id" binding:"required"`
	FileID int64  `json:"file_id" binding:"required"`
}

type SetConstraintsRequest struct {
	AllowedMaterials     []core.ConstraintRef `json:"allowed_materials"`
	AllowedExtruderTypes []core.ConstraintRef `json:"allowed_extruder_types"`
	UsedExtruderIndexes  []int                `json:"used_extruder_indexes"`
}

type ReorderJobRequest struct {
	AfterJobID *int64 `json:"after_job_id"`
}

type AssignJobRequest struct {
	PrinterID int64 `json:"printer_id" binding:"required"`
}

type RequeueJobRequest struct {
	ToHead bool `json:"to_head"`
}

type MarkDoneRequest struct {
	Succeeded *bool `json:"succeeded" binding:"required"`
}

type JobResponse struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	UserID             int64      `json:"user_id"`
	FileID             int64      `json:"file_id"`
	State              string     `json:"state"`
	Priority           *int64     `json:"priority,omitempty"`
	CanBePrinted       bool       `json:"can_be_printed"`
	Retries            int        `json:"retries"`
	Progress           float64    `json:"progress"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	EstimatedTimeLeftS *int64     `json:"estimated_time_left_s,omitempty"`
	Succeeded          *bool      `json:"succeeded,omitempty"`
	Interrupted        bool       `json:"interrupted"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type JobHandler struct {
	store     *db.Store
	jobs      *core.Manager
	collector *metrics.Collector
}

func NewJobHandler(store *db.Store, jobs *core.Manager, collector *metrics.Collector) *JobHandler {
	return &JobHandler{store: store, jobs: jobs, collector: collector}
}

func jobToResponse(job *db.Job) JobResponse {
	return JobResponse{
		ID:                 job.ID,
		Name:               job.Name,
		UserID:             job.UserID,
		FileID:             job.FileID,
		State:              string(job.State),
		Priority:           job.Priority,
		CanBePrinted:       job.CanBePrinted,
		Retries:            job.Retries,
		Progress:           job.Progress,
		StartedAt:          job.StartedAt,
		FinishedAt:         job.FinishedAt,
		EstimatedTimeLeftS: job.EstimatedTimeLeftS,
		Succeeded:          job.Succeeded,
		Interrupted:        job.Interrupted,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
	}
}

func jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return id, true
}

func (h *JobHandler) refreshQueueMetrics(c *gin.Context) {
	if h.collector == nil {
		return
	}
	stats, err := h.jobs.QueueStats(c.Request.Context())
	if err != nil {
		return
	}
	h.collector.SetQueueDepth(stats.Waiting, stats.Printable)
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), req.Name, req.UserID, req.FileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, jobToResponse(job))
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var (
		jobs []*db.Job
		err  error
	)

	if state := c.Query("state"); state != "" {
		if !db.JobState(state).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown job state"})
			return
		}
		jobs, err = h.store.Jobs.ListByState(c.Request.Context(), db.JobState(state))
	} else {
		jobs, err = h.store.Jobs.List(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, jobToResponse(job))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": responses, "count": len(responses)})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.store.Jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) DeleteJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.jobs.DeleteJob(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.refreshQueueMetrics(c)
	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

func (h *JobHandler) SetConstraints(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req SetConstraintsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.SetJobConstraints(c.Request.Context(), id, core.JobConstraints{
		AllowedMaterials:     req.AllowedMaterials,
		AllowedExtruderTypes: req.AllowedExtruderTypes,
		UsedExtruderIndexes:  req.UsedExtruderIndexes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) EnqueueJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.jobs.EnqueueJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.refreshQueueMetrics(c)
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) AssignJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req AssignJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	printer, err := h.jobs.AssignJobToPrinter(c.Request.Context(), req.PrinterID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job assigned", "printer_id": printer.ID})
}

func (h *JobHandler) StartJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.jobs.StartPrinting(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.refreshQueueMetrics(c)
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) FinishJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.jobs.FinishJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) MarkDone(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req MarkDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.MarkJobDone(c.Request.Context(), id, *req.Succeeded)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) RequeueJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req RequeueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.RequeueJob(c.Request.Context(), id, req.ToHead)
	if err != nil {
		respondError(c, err)
		return
	}
	h.refreshQueueMetrics(c)
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) ReprintJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.jobs.ReprintJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.refreshQueueMetrics(c)
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) ReorderJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req ReorderJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.ReorderJob(c.Request.Context(), id, req.AfterJobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) CheckPrintable(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	printers, err := h.jobs.UsablePrinters(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	printerIDs := make([]int64, 0, len(printers))
	for _, printer := range printers {
		printerIDs = append(printerIDs, printer.ID)
	}
	c.JSON(http.StatusOK, gin.H{
		"can_be_printed": len(printers) > 0,
		"printer_ids":    printerIDs,
	})
}

func (h *JobHandler) GetQueue(c *gin.Context) {
	jobs, err := h.store.Jobs.ListQueued(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.jobs.QueueStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if h.collector != nil {
		h.collector.SetQueueDepth(stats.Waiting, stats.Printable)
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, jobToResponse(job))
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":      responses,
		"waiting":   stats.Waiting,
		"printable": stats.Printable,
	})
}

func (h *JobHandler) GetQueueHead(c *gin.Context) {
	job, err := h.jobs.PeekQueueHead(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if job == nil {
		c.JSON(http.StatusOK, gin.H{"job": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": jobToResponse(job)})
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs", h.CreateJob)
	r.GET("/jobs/queue", h.GetQueue)
	r.GET("/jobs/queue/head", h.GetQueueHead)
	r.GET("/jobs/:id", h.GetJob)
	r.DELETE("/jobs/:id", h.DeleteJob)
	r.PUT("/jobs/:id/constraints", h.SetConstraints)
	r.GET("/jobs/:id/printable", h.CheckPrintable)
	r.POST("/jobs/:id/enqueue", h.EnqueueJob)
	r.POST("/jobs/:id/assign", h.AssignJob)
	r.POST("/jobs/:id/start", h.StartJob)
	r.POST("/jobs/:id/finish", h.FinishJob)
	r.POST("/jobs/:id/done", h.MarkDone)
	r.POST("/jobs/:id/requeue", h.RequeueJob)
	r.POST("/jobs/:id/reprint", h.ReprintJob)
	r.POST("/jobs/:id/reorder", h.ReorderJob)
}
