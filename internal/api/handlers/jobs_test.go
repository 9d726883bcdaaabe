package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfarm/internal/core"
	"github.com/orrn/printfarm/internal/db"
)

type testEnv struct {
	store    *db.Store
	jobs     *core.Manager
	printers *core.PrinterManager
	router   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	store := db.NewStore(conn)
	jobs := core.NewManager(store)
	printers := core.NewPrinterManager(store, jobs)

	router := gin.New()
	api := router.Group("/api")
	NewJobHandler(store, jobs, nil).RegisterRoutes(api)
	NewPrinterHandler(store, printers).RegisterRoutes(api)
	NewFileHandler(store).RegisterRoutes(api)

	return &testEnv{store: store, jobs: jobs, printers: printers, router: router}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedJob(t *testing.T) *db.Job {
	t.Helper()
	ctx := context.Background()

	user, err := e.store.Users.Create(ctx, "operator")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	file := &db.File{UserID: user.ID, Name: "part.gcode", StoredName: "stored.gcode"}
	if err := e.store.Files.Create(ctx, file); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	job, err := e.jobs.CreateJob(ctx, "part", user.ID, file.ID)
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

func TestCreateJobEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.store.Users.Create(ctx, "operator")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	file := &db.File{UserID: user.ID, Name: "part.gcode", StoredName: "stored.gcode"}
	if err := env.store.Files.Create(ctx, file); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	w := env.request(t, http.MethodPost, "/api/jobs", CreateJobRequest{
		Name: "part", UserID: user.ID, FileID: file.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State != string(db.JobStateCreated) {
		t.Errorf("expected created state, got %s", resp.State)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	job := env.seedJob(t)

	// NotFound -> 404.
	w := env.request(t, http.MethodGet, "/api/jobs/9999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing job: expected 404, got %d", w.Code)
	}

	// InvalidState -> 400 (start before enqueue).
	w = env.request(t, http.MethodPost, fmt.Sprintf("/api/jobs/%d/start", job.ID), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("illegal transition: expected 400, got %d", w.Code)
	}

	// ConstraintViolation -> 409 (second job onto a busy printer).
	env2 := newTestEnv(t)
	ctx := context.Background()
	model := &db.PrinterModel{Name: "MK4", Width: 250, Depth: 210, Height: 220}
	if err := env2.store.Catalog.CreatePrinterModel(ctx, model); err != nil {
		t.Fatalf("failed to create printer model: %v", err)
	}
	printer, err := env2.printers.RegisterPrinter(ctx, model.ID, "p1", "SN-1", "", 1)
	if err != nil {
		t.Fatalf("failed to register printer: %v", err)
	}
	if _, err := env2.printers.SetPrinterState(ctx, printer.ID, db.PrinterStateIdle); err != nil {
		t.Fatalf("failed to set printer state: %v", err)
	}

	first := env2.seedJob(t)
	second, err := env2.jobs.CreateJob(ctx, "second", first.UserID, first.FileID)
	if err != nil {
		t.Fatalf("failed to create second job: %v", err)
	}
	for _, id := range []int64{first.ID, second.ID} {
		if _, err := env2.jobs.EnqueueJob(ctx, id); err != nil {
			t.Fatalf("failed to enqueue job: %v", err)
		}
	}
	if _, err := env2.jobs.AssignJobToPrinter(ctx, printer.ID, first.ID); err != nil {
		t.Fatalf("failed to assign first job: %v", err)
	}

	w = env2.request(t, http.MethodPost, fmt.Sprintf("/api/jobs/%d/assign", second.ID),
		AssignJobRequest{PrinterID: printer.ID})
	if w.Code != http.StatusConflict {
		t.Errorf("busy printer: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestQueueEndpointLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	model := &db.PrinterModel{Name: "MK4", Width: 250, Depth: 210, Height: 220}
	if err := env.store.Catalog.CreatePrinterModel(ctx, model); err != nil {
		t.Fatalf("failed to create printer model: %v", err)
	}
	printer, err := env.printers.RegisterPrinter(ctx, model.ID, "p1", "SN-1", "", 1)
	if err != nil {
		t.Fatalf("failed to register printer: %v", err)
	}
	if _, err := env.printers.SetPrinterState(ctx, printer.ID, db.PrinterStateIdle); err != nil {
		t.Fatalf("failed to set printer state: %v", err)
	}

	job := env.seedJob(t)

	w := env.request(t, http.MethodPost, fmt.Sprintf("/api/jobs/%d/enqueue", job.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("enqueue: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.request(t, http.MethodGet, "/api/jobs/queue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("queue: expected 200, got %d", w.Code)
	}
	var queue struct {
		Waiting   int           `json:"waiting"`
		Printable int           `json:"printable"`
		Jobs      []JobResponse `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &queue); err != nil {
		t.Fatalf("failed to decode queue: %v", err)
	}
	if queue.Waiting != 1 || queue.Printable != 1 || len(queue.Jobs) != 1 {
		t.Fatalf("expected one printable queued job, got %+v", queue)
	}

	w = env.request(t, http.MethodGet, "/api/jobs/queue/head", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("queue head: expected 200, got %d", w.Code)
	}
	var head struct {
		Job *JobResponse `json:"job"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &head); err != nil {
		t.Fatalf("failed to decode queue head: %v", err)
	}
	if head.Job == nil || head.Job.ID != job.ID {
		t.Fatalf("expected the enqueued job at the head, got %+v", head.Job)
	}
}
