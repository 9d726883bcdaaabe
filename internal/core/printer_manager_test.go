package core

import (
	"context"
	"testing"

	"github.com/orrn/printfarm/internal/db"
)

func TestPrinterStateChangeRefreshesPrintability(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	pm := NewPrinterManager(store, m)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	if !jobs[0].CanBePrinted {
		t.Fatal("expected job printable with an idle printer")
	}

	// The only printer drops off the fleet: the waiting job must lose its
	// printable flag without being touched otherwise.
	if _, err := pm.SetPrinterState(ctx, printer.ID, db.PrinterStateOffline); err != nil {
		t.Fatalf("failed to set printer state: %v", err)
	}
	job, err := store.Jobs.GetByID(ctx, jobs[0].ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if job.CanBePrinted {
		t.Fatal("expected job unprintable with the printer offline")
	}
	if job.State != db.JobStateWaiting || job.Priority == nil {
		t.Fatal("expected job still queued")
	}

	// And regain it when the printer comes back.
	if _, err := pm.SetPrinterState(ctx, printer.ID, db.PrinterStateIdle); err != nil {
		t.Fatalf("failed to set printer state: %v", err)
	}
	job, err = store.Jobs.GetByID(ctx, jobs[0].ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if !job.CanBePrinted {
		t.Fatal("expected job printable again with the printer idle")
	}
}

func TestExtruderConfigChangeRefreshesPrintability(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	pm := NewPrinterManager(store, m)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	pla := seedMaterial(t, store, "PLA")
	petg := seedMaterial(t, store, "PETG")

	job, err := m.CreateJob(ctx, "job", userID, fileID)
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if _, err := m.SetJobConstraints(ctx, job.ID, JobConstraints{
		AllowedMaterials:    []ConstraintRef{{ID: pla.ID, ExtruderIndex: 0}},
		UsedExtruderIndexes: []int{0},
	}); err != nil {
		t.Fatalf("failed to set constraints: %v", err)
	}
	job, err = m.EnqueueJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to enqueue job: %v", err)
	}
	if job.CanBePrinted {
		t.Fatal("expected job unprintable with no material loaded")
	}

	// Loading the allowed material flips the flag.
	if err := pm.SetExtruderConfig(ctx, printer.ID, 0, &pla.ID, nil); err != nil {
		t.Fatalf("failed to set extruder config: %v", err)
	}
	job, err = store.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if !job.CanBePrinted {
		t.Fatal("expected job printable after loading the allowed material")
	}

	// Swapping in a disallowed material flips it back.
	if err := pm.SetExtruderConfig(ctx, printer.ID, 0, &petg.ID, nil); err != nil {
		t.Fatalf("failed to set extruder config: %v", err)
	}
	job, err = store.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if job.CanBePrinted {
		t.Fatal("expected job unprintable after swapping materials")
	}
}

func TestSetExtruderConfigValidatesReferences(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	pm := NewPrinterManager(store, m)
	ctx := context.Background()
	printer := seedPrinter(t, store, "p1", "SN-1")

	missing := int64(9999)
	if err := pm.SetExtruderConfig(ctx, printer.ID, 0, &missing, nil); !isNotFound(err) {
		t.Fatalf("expected not found for missing material, got %v", err)
	}
	if err := pm.SetExtruderConfig(ctx, printer.ID, 0, nil, &missing); !isNotFound(err) {
		t.Fatalf("expected not found for missing extruder type, got %v", err)
	}
	if err := pm.SetExtruderConfig(ctx, printer.ID, -1, nil, nil); !isInvalidParameter(err) {
		t.Fatalf("expected invalid parameter for negative index, got %v", err)
	}
}

func TestRegisterPrinterValidation(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	pm := NewPrinterManager(store, m)
	ctx := context.Background()

	model := &db.PrinterModel{Name: "MK4", Width: 250, Depth: 210, Height: 220}
	if err := store.Catalog.CreatePrinterModel(ctx, model); err != nil {
		t.Fatalf("failed to create printer model: %v", err)
	}

	if _, err := pm.RegisterPrinter(ctx, model.ID, "", "SN-1", "", 1); !isInvalidParameter(err) {
		t.Errorf("empty name: expected invalid parameter, got %v", err)
	}
	if _, err := pm.RegisterPrinter(ctx, model.ID, "p1", "", "", 1); !isInvalidParameter(err) {
		t.Errorf("empty serial: expected invalid parameter, got %v", err)
	}
	if _, err := pm.RegisterPrinter(ctx, model.ID, "p1", "SN-1", "", 0); !isInvalidParameter(err) {
		t.Errorf("zero extruders: expected invalid parameter, got %v", err)
	}
	if _, err := pm.RegisterPrinter(ctx, 9999, "p1", "SN-1", "", 1); !isNotFound(err) {
		t.Errorf("missing model: expected not found, got %v", err)
	}

	printer, err := pm.RegisterPrinter(ctx, model.ID, "p1", "SN-1", "10.0.0.5", 2)
	if err != nil {
		t.Fatalf("failed to register printer: %v", err)
	}
	if printer.State != db.PrinterStateOffline {
		t.Fatalf("expected new printer offline, got %s", printer.State)
	}
	extruders, err := store.Printers.ListExtruders(ctx, printer.ID)
	if err != nil {
		t.Fatalf("failed to list extruders: %v", err)
	}
	if len(extruders) != 2 {
		t.Fatalf("expected 2 extruder slots, got %d", len(extruders))
	}

	// Duplicate serial numbers are rejected by the store.
	if _, err := pm.RegisterPrinter(ctx, model.ID, "p2", "SN-1", "", 1); !isConstraintViolation(err) {
		t.Errorf("duplicate serial: expected constraint violation, got %v", err)
	}
}

func TestInitializePrinterStates(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	pm := NewPrinterManager(store, m)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	if !jobs[0].CanBePrinted {
		t.Fatal("expected job printable before restart")
	}

	if err := pm.InitializePrinterStates(ctx); err != nil {
		t.Fatalf("failed to initialize printer states: %v", err)
	}

	printer, err := store.Printers.GetByID(ctx, printer.ID)
	if err != nil {
		t.Fatalf("failed to reload printer: %v", err)
	}
	if printer.State != db.PrinterStateOffline {
		t.Fatalf("expected printer forced offline, got %s", printer.State)
	}

	job, err := store.Jobs.GetByID(ctx, jobs[0].ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if job.CanBePrinted {
		t.Fatal("expected printability cleared after the fleet reset")
	}
}

func TestReportProgressRoutesToCurrentJob(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	pm := NewPrinterManager(store, m)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	if _, err := pm.ReportProgress(ctx, printer.ID, 10, nil); !isInvalidState(err) {
		t.Fatalf("expected invalid state with no assigned job, got %v", err)
	}

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobs[0].ID); err != nil {
		t.Fatalf("failed to assign job: %v", err)
	}
	if _, err := m.StartPrinting(ctx, jobs[0].ID); err != nil {
		t.Fatalf("failed to start printing: %v", err)
	}

	job, err := pm.ReportProgress(ctx, printer.ID, 33, nil)
	if err != nil {
		t.Fatalf("failed to report progress: %v", err)
	}
	if job.ID != jobs[0].ID || job.Progress != 33 {
		t.Fatalf("expected progress 33 on job %d, got %f on %d", jobs[0].ID, job.Progress, job.ID)
	}
}

func TestPrinterEventsEmittedOnStateChange(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	sink := &recordingSink{}
	pm := NewPrinterManager(store, m, sink)
	ctx := context.Background()
	printer := seedPrinter(t, store, "p1", "SN-1")

	if _, err := pm.SetPrinterState(ctx, printer.ID, db.PrinterStatePrinting); err != nil {
		t.Fatalf("failed to set printer state: %v", err)
	}
	if len(sink.printerStates) != 1 || sink.printerStates[0] != db.PrinterStatePrinting {
		t.Fatalf("expected one printing transition, got %v", sink.printerStates)
	}

	// Reporting the same state again is not a transition.
	if _, err := pm.SetPrinterState(ctx, printer.ID, db.PrinterStatePrinting); err != nil {
		t.Fatalf("failed to re-set printer state: %v", err)
	}
	if len(sink.printerStates) != 1 {
		t.Fatalf("expected no event for an unchanged state, got %v", sink.printerStates)
	}
}
