package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfarm/internal/core"
	"github.com/orrn/printfarm/internal/db"
)

type RegisterPrinterRequest struct {
	ModelID       int64  `json:"model_id" binding:"required"`
	Name          string `json:"name" binding:"required"`
	SerialNumber  string `json:"serial_number" binding:"required"`
	IPAddress     string `json:"ip_address"`
	ExtruderCount int    `json:"extruder_count" binding:"required,min=1"`
}

type PrinterStateRequest struct {
	State string `json:"state" binding:"required"`
}

type ExtruderConfigRequest struct {
	Index          int    `json:"index"`
	MaterialID     *int64 `json:"material_id"`
	ExtruderTypeID *int64 `json:"extruder_type_id"`
}

type ProgressRequest struct {
	Progress  float64 `json:"progress"`
	TimeLeftS *int64  `json:"time_left_s"`
}

type ExtruderResponse struct {
	Index          int    `json:"index"`
	MaterialID     *int64 `json:"material_id,omitempty"`
	ExtruderTypeID *int64 `json:"extruder_type_id,omitempty"`
}

type PrinterResponse struct {
	ID                 int64              `json:"id"`
	ModelID            int64              `json:"model_id"`
	State              string             `json:"state"`
	CurrentJobID       *int64             `json:"current_job_id,omitempty"`
	Name               string             `json:"name"`
	SerialNumber       string             `json:"serial_number"`
	IPAddress          string             `json:"ip_address"`
	RegisteredAt       time.Time          `json:"registered_at"`
	TotalSuccessPrints int64              `json:"total_success_prints"`
	TotalFailedPrints  int64              `json:"total_failed_prints"`
	TotalPrintingTimeS int64              `json:"total_printing_time_s"`
	Extruders          []ExtruderResponse `json:"extruders,omitempty"`
}

type PrinterHandler struct {
	store    *db.Store
	printers *core.PrinterManager
}

func NewPrinterHandler(store *db.Store, printers *core.PrinterManager) *PrinterHandler {
	return &PrinterHandler{store: store, printers: printers}
}

func printerToResponse(printer *db.Printer) PrinterResponse {
	return PrinterResponse{
		ID:                 printer.ID,
		ModelID:            printer.ModelID,
		State:              string(printer.State),
		CurrentJobID:       printer.CurrentJobID,
		Name:               printer.Name,
		SerialNumber:       printer.SerialNumber,
		IPAddress:          printer.IPAddress,
		RegisteredAt:       printer.RegisteredAt,
		TotalSuccessPrints: printer.TotalSuccessPrints,
		TotalFailedPrints:  printer.TotalFailedPrints,
		TotalPrintingTimeS: printer.TotalPrintingTimeS,
	}
}

func printerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid printer id"})
		return 0, false
	}
	return id, true
}

func (h *PrinterHandler) RegisterPrinter(c *gin.Context) {
	var req RegisterPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	printer, err := h.printers.RegisterPrinter(c.Request.Context(),
		req.ModelID, req.Name, req.SerialNumber, req.IPAddress, req.ExtruderCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, printerToResponse(printer))
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	printers, err := h.store.Printers.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]PrinterResponse, 0, len(printers))
	for _, printer := range printers {
		responses = append(responses, printerToResponse(printer))
	}
	c.JSON(http.StatusOK, gin.H{"printers": responses, "count": len(responses)})
}

func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	id, ok := printerID(c)
	if !ok {
		return
	}

	printer, err := h.store.Printers.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	extruders, err := h.store.Printers.ListExtruders(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := printerToResponse(printer)
	for _, extruder := range extruders {
		resp.Extruders = append(resp.Extruders, ExtruderResponse{
			Index:          extruder.Index,
			MaterialID:     extruder.MaterialID,
			ExtruderTypeID: extruder.ExtruderTypeID,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PrinterHandler) SetState(c *gin.Context) {
	id, ok := printerID(c)
	if !ok {
		return
	}

	var req PrinterStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	printer, err := h.printers.SetPrinterState(c.Request.Context(), id, db.PrinterState(req.State))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, printerToResponse(printer))
}

func (h *PrinterHandler) SetExtruderConfig(c *gin.Context) {
	id, ok := printerID(c)
	if !ok {
		return
	}

	var req ExtruderConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.printers.SetExtruderConfig(c.Request.Context(), id, req.Index, req.MaterialID, req.ExtruderTypeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "extruder updated"})
}

func (h *PrinterHandler) ReportProgress(c *gin.Context) {
	id, ok := printerID(c)
	if !ok {
		return
	}

	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var timeLeft *time.Duration
	if req.TimeLeftS != nil {
		d := time.Duration(*req.TimeLeftS) * time.Second
		timeLeft = &d
	}

	job, err := h.printers.ReportProgress(c.Request.Context(), id, req.Progress, timeLeft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobToResponse(job))
}

func (h *PrinterHandler) DeletePrinter(c *gin.Context) {
	id, ok := printerID(c)
	if !ok {
		return
	}

	if err := h.printers.DeletePrinter(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "printer deleted"})
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/printers", h.ListPrinters)
	r.POST("/printers", h.RegisterPrinter)
	r.GET("/printers/:id", h.GetPrinter)
	r.DELETE("/printers/:id", h.DeletePrinter)
	r.PUT("/printers/:id/state", h.SetState)
	r.PUT("/printers/:id/extruders", h.SetExtruderConfig)
	r.POST("/printers/:id/progress", h.ReportProgress)
}
