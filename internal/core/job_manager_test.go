package core

import (
	"context"
	"testing"
	"time"

	"github.com/orrn/printfarm/internal/db"
)

func TestJobLifecycle(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	job, err := m.CreateJob(ctx, "benchy", userID, fileID)
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if job.State != db.JobStateCreated {
		t.Fatalf("expected created state, got %s", job.State)
	}

	job, err = m.EnqueueJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to enqueue job: %v", err)
	}
	if job.State != db.JobStateWaiting || job.Priority == nil {
		t.Fatalf("expected waiting job with priority, got %s / %v", job.State, job.Priority)
	}

	if _, err := m.AssignJobToPrinter(ctx, printer.ID, job.ID); err != nil {
		t.Fatalf("failed to assign job: %v", err)
	}

	job, err = m.StartPrinting(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to start printing: %v", err)
	}
	if job.State != db.JobStatePrinting {
		t.Fatalf("expected printing state, got %s", job.State)
	}
	if job.Priority != nil {
		t.Fatal("expected priority released when printing starts")
	}
	if job.StartedAt == nil {
		t.Fatal("expected started_at set")
	}

	job, err = m.FinishJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to finish job: %v", err)
	}
	if job.State != db.JobStateFinished {
		t.Fatalf("expected finished state, got %s", job.State)
	}
	if job.Progress != 100 {
		t.Fatalf("expected progress 100 on finish, got %f", job.Progress)
	}
	if job.FinishedAt == nil {
		t.Fatal("expected finished_at set")
	}

	job, err = m.MarkJobDone(ctx, job.ID, true)
	if err != nil {
		t.Fatalf("failed to mark job done: %v", err)
	}
	if job.State != db.JobStateDone {
		t.Fatalf("expected done state, got %s", job.State)
	}
	if job.Succeeded == nil || !*job.Succeeded {
		t.Fatal("expected succeeded recorded")
	}

	// The printer is released and the outcome counted.
	printer, err = store.Printers.GetByID(ctx, printer.ID)
	if err != nil {
		t.Fatalf("failed to reload printer: %v", err)
	}
	if printer.CurrentJobID != nil {
		t.Fatal("expected printer released after job done")
	}
	if printer.TotalSuccessPrints != 1 || printer.TotalFailedPrints != 0 {
		t.Fatalf("expected 1 success / 0 failed, got %d / %d",
			printer.TotalSuccessPrints, printer.TotalFailedPrints)
	}
}

func TestIllegalTransitionsMutateNothing(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	seedPrinter(t, store, "p1", "SN-1")

	job, err := m.CreateJob(ctx, "benchy", userID, fileID)
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	// Every transition except enqueue is illegal from created.
	if _, err := m.StartPrinting(ctx, job.ID); !isInvalidState(err) {
		t.Errorf("start from created: expected invalid state, got %v", err)
	}
	if _, err := m.FinishJob(ctx, job.ID); !isInvalidState(err) {
		t.Errorf("finish from created: expected invalid state, got %v", err)
	}
	if _, err := m.MarkJobDone(ctx, job.ID, true); !isInvalidState(err) {
		t.Errorf("done from created: expected invalid state, got %v", err)
	}
	if _, err := m.RequeueJob(ctx, job.ID, false); !isInvalidState(err) {
		t.Errorf("requeue from created: expected invalid state, got %v", err)
	}
	if _, err := m.ReprintJob(ctx, job.ID); !isInvalidState(err) {
		t.Errorf("reprint from created: expected invalid state, got %v", err)
	}

	// Nothing changed.
	reloaded, err := store.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if reloaded.State != db.JobStateCreated || reloaded.Priority != nil {
		t.Fatalf("expected job untouched, got %s / %v", reloaded.State, reloaded.Priority)
	}

	// Double enqueue is rejected.
	if _, err := m.EnqueueJob(ctx, job.ID); err != nil {
		t.Fatalf("failed to enqueue job: %v", err)
	}
	if _, err := m.EnqueueJob(ctx, job.ID); !isInvalidState(err) {
		t.Errorf("double enqueue: expected invalid state, got %v", err)
	}
}

func TestStartPrintingRequiresAssignedPrinter(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	if _, err := m.StartPrinting(ctx, jobs[0].ID); !isInvalidState(err) {
		t.Fatalf("expected invalid state without an assigned printer, got %v", err)
	}
}

func TestAssignRejectsBusyPrinter(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 2)
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobs[0].ID); err != nil {
		t.Fatalf("failed to assign first job: %v", err)
	}
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobs[1].ID); !isConstraintViolation(err) {
		t.Fatalf("expected constraint violation for busy printer, got %v", err)
	}
}

func TestRequeueIncrementsRetriesAndClearsRunData(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	jobID := jobs[0].ID

	if _, err := m.SetJobConstraints(ctx, jobID, JobConstraints{UsedExtruderIndexes: []int{0}}); err != nil {
		t.Fatalf("failed to set constraints: %v", err)
	}

	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobID); err != nil {
		t.Fatalf("failed to assign job: %v", err)
	}
	if _, err := m.StartPrinting(ctx, jobID); err != nil {
		t.Fatalf("failed to start printing: %v", err)
	}

	job, err := m.RequeueJob(ctx, jobID, false)
	if err != nil {
		t.Fatalf("failed to requeue job: %v", err)
	}

	if job.State != db.JobStateWaiting {
		t.Fatalf("expected waiting state, got %s", job.State)
	}
	if job.Retries != 1 {
		t.Fatalf("expected retries 1, got %d", job.Retries)
	}
	if !job.Interrupted {
		t.Fatal("expected interrupted flag after requeue from printing")
	}
	if job.StartedAt != nil || job.FinishedAt != nil || job.Progress != 0 {
		t.Fatal("expected per-run fields cleared")
	}

	// The printer no longer holds the job.
	printer, err = store.Printers.GetByID(ctx, printer.ID)
	if err != nil {
		t.Fatalf("failed to reload printer: %v", err)
	}
	if printer.CurrentJobID != nil {
		t.Fatal("expected printer released after requeue")
	}

	// A second interrupted run keeps counting.
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobID); err != nil {
		t.Fatalf("failed to reassign job: %v", err)
	}
	if _, err := m.StartPrinting(ctx, jobID); err != nil {
		t.Fatalf("failed to restart printing: %v", err)
	}
	job, err = m.RequeueJob(ctx, jobID, false)
	if err != nil {
		t.Fatalf("failed to requeue job again: %v", err)
	}
	if job.Retries != 2 {
		t.Fatalf("expected retries 2, got %d", job.Retries)
	}
}

func TestFinishSnapshotsUsedExtruderData(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	pla := seedMaterial(t, store, "PLA")
	nozzle := seedExtruderType(t, store, 0.4)
	if err := store.Printers.UpsertExtruder(ctx, printer.ID, 0, &pla.ID, &nozzle.ID); err != nil {
		t.Fatalf("failed to configure extruder: %v", err)
	}

	job, err := m.CreateJob(ctx, "benchy", userID, fileID)
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if _, err := m.SetJobConstraints(ctx, job.ID, JobConstraints{UsedExtruderIndexes: []int{0}}); err != nil {
		t.Fatalf("failed to set constraints: %v", err)
	}
	if _, err := m.EnqueueJob(ctx, job.ID); err != nil {
		t.Fatalf("failed to enqueue job: %v", err)
	}
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, job.ID); err != nil {
		t.Fatalf("failed to assign job: %v", err)
	}
	if _, err := m.StartPrinting(ctx, job.ID); err != nil {
		t.Fatalf("failed to start printing: %v", err)
	}
	if _, err := m.FinishJob(ctx, job.ID); err != nil {
		t.Fatalf("failed to finish job: %v", err)
	}

	extruders, err := store.Jobs.ListExtruders(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to list job extruders: %v", err)
	}
	if len(extruders) != 1 {
		t.Fatalf("expected 1 job extruder, got %d", len(extruders))
	}
	if extruders[0].UsedMaterialID == nil || *extruders[0].UsedMaterialID != pla.ID {
		t.Fatalf("expected used material %d, got %v", pla.ID, extruders[0].UsedMaterialID)
	}
	if extruders[0].UsedExtruderTypeID == nil || *extruders[0].UsedExtruderTypeID != nozzle.ID {
		t.Fatalf("expected used extruder type %d, got %v", nozzle.ID, extruders[0].UsedExtruderTypeID)
	}

	// Requeue clears the snapshot again.
	job, err = m.RequeueJob(ctx, job.ID, false)
	if err != nil {
		t.Fatalf("failed to requeue job: %v", err)
	}
	extruders, err = store.Jobs.ListExtruders(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to list job extruders: %v", err)
	}
	if extruders[0].UsedMaterialID != nil || extruders[0].UsedExtruderTypeID != nil {
		t.Fatal("expected used extruder data cleared on requeue")
	}
}

func TestReprintResetsRetries(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	jobID := jobs[0].ID

	// One interrupted run, then a completed one.
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobID); err != nil {
		t.Fatalf("failed to assign job: %v", err)
	}
	if _, err := m.StartPrinting(ctx, jobID); err != nil {
		t.Fatalf("failed to start printing: %v", err)
	}
	if _, err := m.RequeueJob(ctx, jobID, false); err != nil {
		t.Fatalf("failed to requeue job: %v", err)
	}
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobID); err != nil {
		t.Fatalf("failed to reassign job: %v", err)
	}
	if _, err := m.StartPrinting(ctx, jobID); err != nil {
		t.Fatalf("failed to start printing: %v", err)
	}
	if _, err := m.FinishJob(ctx, jobID); err != nil {
		t.Fatalf("failed to finish job: %v", err)
	}
	if _, err := m.MarkJobDone(ctx, jobID, false); err != nil {
		t.Fatalf("failed to mark job done: %v", err)
	}

	job, err := m.ReprintJob(ctx, jobID)
	if err != nil {
		t.Fatalf("failed to reprint job: %v", err)
	}
	if job.State != db.JobStateWaiting {
		t.Fatalf("expected waiting state, got %s", job.State)
	}
	if job.Retries != 0 {
		t.Fatalf("expected retries reset to 0, got %d", job.Retries)
	}
	if job.Succeeded != nil {
		t.Fatal("expected succeeded cleared on reprint")
	}

	// The failed run was counted against the printer.
	printer, err = store.Printers.GetByID(ctx, printer.ID)
	if err != nil {
		t.Fatalf("failed to reload printer: %v", err)
	}
	if printer.TotalSuccessPrints != 0 || printer.TotalFailedPrints != 1 {
		t.Fatalf("expected 0 success / 1 failed, got %d / %d",
			printer.TotalSuccessPrints, printer.TotalFailedPrints)
	}
}

func TestSetJobProgress(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	jobID := jobs[0].ID

	if _, err := m.SetJobProgress(ctx, jobID, 50, nil); !isInvalidState(err) {
		t.Fatalf("expected invalid state for progress on waiting job, got %v", err)
	}

	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobID); err != nil {
		t.Fatalf("failed to assign job: %v", err)
	}
	if _, err := m.StartPrinting(ctx, jobID); err != nil {
		t.Fatalf("failed to start printing: %v", err)
	}

	if _, err := m.SetJobProgress(ctx, jobID, 150, nil); !isInvalidParameter(err) {
		t.Fatalf("expected invalid parameter for progress > 100, got %v", err)
	}

	timeLeft := 90 * time.Second
	job, err := m.SetJobProgress(ctx, jobID, 42.5, &timeLeft)
	if err != nil {
		t.Fatalf("failed to set progress: %v", err)
	}
	if job.Progress != 42.5 {
		t.Fatalf("expected progress 42.5, got %f", job.Progress)
	}
	if job.EstimatedTimeLeftS == nil || *job.EstimatedTimeLeftS != 90 {
		t.Fatalf("expected 90s left, got %v", job.EstimatedTimeLeftS)
	}
}

func TestDeleteJobReleasesPrinter(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobs[0].ID); err != nil {
		t.Fatalf("failed to assign job: %v", err)
	}

	if err := m.DeleteJob(ctx, jobs[0].ID); err != nil {
		t.Fatalf("failed to delete job: %v", err)
	}

	if _, err := store.Jobs.GetByID(ctx, jobs[0].ID); !isNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	printer, err := store.Printers.GetByID(ctx, printer.ID)
	if err != nil {
		t.Fatalf("failed to reload printer: %v", err)
	}
	if printer.CurrentJobID != nil {
		t.Fatal("expected printer released after job delete")
	}
}

func TestCreateJobValidation(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)

	if _, err := m.CreateJob(ctx, "", userID, fileID); !isInvalidParameter(err) {
		t.Errorf("empty name: expected invalid parameter, got %v", err)
	}
	if _, err := m.CreateJob(ctx, "job", 9999, fileID); !isNotFound(err) {
		t.Errorf("missing user: expected not found, got %v", err)
	}
	if _, err := m.CreateJob(ctx, "job", userID, 9999); !isNotFound(err) {
		t.Errorf("missing file: expected not found, got %v", err)
	}
}

func TestEventSinkReceivesCommittedTransitions(t *testing.T) {
	store := newTestStore(t)
	sink := &recordingSink{}
	m := NewManager(store, sink)
	ctx := context.Background()
	userID, fileID := seedUserAndFile(t, store)
	printer := seedPrinter(t, store, "p1", "SN-1")

	jobs := seedQueuedJobs(t, store, m, userID, fileID, 1)
	jobID := jobs[0].ID
	if _, err := m.AssignJobToPrinter(ctx, printer.ID, jobID); err != nil {
		t.Fatalf("failed to assign job: %v", err)
	}
	if _, err := m.StartPrinting(ctx, jobID); err != nil {
		t.Fatalf("failed to start printing: %v", err)
	}
	if _, err := m.FinishJob(ctx, jobID); err != nil {
		t.Fatalf("failed to finish job: %v", err)
	}
	if _, err := m.MarkJobDone(ctx, jobID, true); err != nil {
		t.Fatalf("failed to mark job done: %v", err)
	}

	want := []db.JobState{db.JobStateWaiting, db.JobStatePrinting, db.JobStateFinished, db.JobStateDone}
	if len(sink.jobStates) != len(want) {
		t.Fatalf("expected %d transitions, got %d", len(want), len(sink.jobStates))
	}
	for i, state := range want {
		if sink.jobStates[i] != state {
			t.Errorf("transition %d: expected %s, got %s", i, state, sink.jobStates[i])
		}
	}

	// Failed transitions emit nothing.
	before := len(sink.jobStates)
	if _, err := m.StartPrinting(ctx, jobID); !isInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if len(sink.jobStates) != before {
		t.Fatal("expected no event for a failed transition")
	}
}

type recordingSink struct {
	jobStates     []db.JobState
	printerStates []db.PrinterState
}

func (r *recordingSink) JobStateChanged(job *db.Job, from, to db.JobState) {
	r.jobStates = append(r.jobStates, to)
}

func (r *recordingSink) PrinterStateChanged(printer *db.Printer, from, to db.PrinterState) {
	r.printerStates = append(r.printerStates, to)
}
