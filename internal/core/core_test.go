package core

import (
	"context"
	"errors"
	"testing"

	"github.com/orrn/printfarm/internal/db"
)

func isInvalidState(err error) bool     { return errors.Is(err, db.ErrInvalidState) }
func isInvalidParameter(err error) bool { return errors.Is(err, db.ErrInvalidParameter) }
func isNotFound(err error) bool         { return errors.Is(err, db.ErrNotFound) }
func isConstraintViolation(err error) bool {
	return errors.Is(err, db.ErrConstraintViolation)
}

// Shared fixtures for the core tests. Every test gets its own in-memory
// database so state never leaks between tests.

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return db.NewStore(conn)
}

func seedUserAndFile(t *testing.T, store *db.Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	user, err := store.Users.Create(ctx, "operator")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	file := &db.File{UserID: user.ID, Name: "benchy.gcode", StoredName: "benchy-stored.gcode"}
	if err := store.Files.Create(ctx, file); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	return user.ID, file.ID
}

// seedPrinter registers an idle single-extruder printer so that jobs
// without constraints count as printable.
func seedPrinter(t *testing.T, store *db.Store, name, serial string) *db.Printer {
	t.Helper()
	ctx := context.Background()

	model := &db.PrinterModel{Name: "model-" + name, Width: 200, Depth: 200, Height: 200}
	if err := store.Catalog.CreatePrinterModel(ctx, model); err != nil {
		t.Fatalf("failed to create printer model: %v", err)
	}

	printer, err := store.Printers.Create(ctx, model.ID, name, serial, "")
	if err != nil {
		t.Fatalf("failed to create printer: %v", err)
	}
	if err := store.Printers.UpsertExtruder(ctx, printer.ID, 0, nil, nil); err != nil {
		t.Fatalf("failed to create printer extruder: %v", err)
	}
	if err := store.Printers.SetState(ctx, printer.ID, db.PrinterStateIdle); err != nil {
		t.Fatalf("failed to set printer state: %v", err)
	}

	printer, err = store.Printers.GetByID(ctx, printer.ID)
	if err != nil {
		t.Fatalf("failed to reload printer: %v", err)
	}
	return printer
}

func seedQueuedJobs(t *testing.T, store *db.Store, m *Manager, userID, fileID int64, count int) []*db.Job {
	t.Helper()
	ctx := context.Background()

	jobs := make([]*db.Job, 0, count)
	for i := 0; i < count; i++ {
		job, err := m.CreateJob(ctx, "job", userID, fileID)
		if err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		job, err = m.EnqueueJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("failed to enqueue job: %v", err)
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func queuePriorities(t *testing.T, store *db.Store) map[int64]int64 {
	t.Helper()

	queued, err := store.Jobs.ListQueued(context.Background())
	if err != nil {
		t.Fatalf("failed to list queued jobs: %v", err)
	}
	priorities := make(map[int64]int64, len(queued))
	for _, job := range queued {
		if job.Priority == nil {
			t.Fatalf("queued job %d has no priority", job.ID)
		}
		priorities[job.ID] = *job.Priority
	}
	return priorities
}
