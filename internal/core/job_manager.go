package core

import (
	"context"
	"time"

	"github.com/orrn/printfarm/internal/db"
)

// Manager drives the job lifecycle: created -> waiting -> printing ->
// finished -> done, with requeue (printing/finished -> waiting) and
// reprint (done -> waiting) back-edges. Every transition validates its
// preconditions first and applies all of its writes inside one
// transaction, so a failed precondition never leaves partial state.
type Manager struct {
	store *db.Store
	sinks []EventSink
}

func NewManager(store *db.Store, sinks ...EventSink) *Manager {
	return &Manager{store: store, sinks: sinks}
}

func (m *Manager) notifyJob(job *db.Job, from, to db.JobState) {
	for _, sink := range m.sinks {
		sink.JobStateChanged(job, from, to)
	}
}

// CreateJob registers a new job for an uploaded file. The job starts in
// the created state, outside the queue.
func (m *Manager) CreateJob(ctx context.Context, name string, userID, fileID int64) (*db.Job, error) {
	if name == "" {
		return nil, db.InvalidParameterf("the 'name' parameter can't be an empty string")
	}

	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		if _, err := tx.Users.GetByID(ctx, userID); err != nil {
			return err
		}
		if _, err := tx.Files.GetByID(ctx, fileID); err != nil {
			return err
		}
		var err error
		job, err = tx.Jobs.Create(ctx, name, userID, fileID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// SetJobConstraints replaces the job's printability declaration. Allowed
// only before the job has started printing; a waiting job gets its
// printability recomputed against the new constraints.
func (m *Manager) SetJobConstraints(ctx context.Context, jobID int64, constraints JobConstraints) (*db.Job, error) {
	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != db.JobStateCreated && job.State != db.JobStateWaiting {
			return db.InvalidStatef("constraints can only be set while the job is in the 'created' or 'waiting' state")
		}

		for _, ref := range constraints.AllowedMaterials {
			if _, err := tx.Catalog.GetMaterial(ctx, ref.ID); err != nil {
				return err
			}
		}
		for _, ref := range constraints.AllowedExtruderTypes {
			if _, err := tx.Catalog.GetExtruderType(ctx, ref.ID); err != nil {
				return err
			}
		}

		if err := tx.Jobs.ClearConstraints(ctx, jobID); err != nil {
			return err
		}
		for _, ref := range constraints.AllowedMaterials {
			if err := tx.Jobs.AddAllowedMaterial(ctx, jobID, ref.ID, ref.ExtruderIndex); err != nil {
				return err
			}
		}
		for _, ref := range constraints.AllowedExtruderTypes {
			if err := tx.Jobs.AddAllowedExtruderType(ctx, jobID, ref.ID, ref.ExtruderIndex); err != nil {
				return err
			}
		}
		for _, index := range constraints.UsedExtruderIndexes {
			if err := tx.Jobs.AddExtruder(ctx, jobID, index); err != nil {
				return err
			}
		}

		if job.State == db.JobStateWaiting {
			printable, err := isPrintable(ctx, tx, jobID)
			if err != nil {
				return err
			}
			if err := tx.Jobs.SetCanBePrinted(ctx, jobID, printable); err != nil {
				return err
			}
		}

		job, err = tx.Jobs.GetByID(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueJob moves a created job into the waiting queue at the tail.
func (m *Manager) EnqueueJob(ctx context.Context, jobID int64) (*db.Job, error) {
	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != db.JobStateCreated {
			return db.InvalidStatef("the job to enqueue needs to be in the initial state ('created')")
		}

		printable, err := isPrintable(ctx, tx, jobID)
		if err != nil {
			return err
		}
		priority, err := tailPriority(ctx, tx)
		if err != nil {
			return err
		}
		if err := tx.Jobs.MarkEnqueued(ctx, jobID, priority, printable, 0); err != nil {
			return err
		}

		job, err = tx.Jobs.GetByID(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.notifyJob(job, db.JobStateCreated, db.JobStateWaiting)
	return job, nil
}

// AssignJobToPrinter reserves a printer for a waiting, printable job. A
// printer can hold at most one job at a time.
func (m *Manager) AssignJobToPrinter(ctx context.Context, printerID, jobID int64) (*db.Printer, error) {
	var printer *db.Printer
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		job, err := tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		printer, err = tx.Printers.GetByID(ctx, printerID)
		if err != nil {
			return err
		}
		if job.State != db.JobStateWaiting {
			return db.InvalidStatef("the job to assign needs to be in the 'waiting' state")
		}
		if !job.CanBePrinted {
			return db.InvalidStatef("can't assign a job that can't be printed with the current printer configuration")
		}
		if printer.CurrentJobID != nil {
			return db.ConstraintViolationf("printer %d already has an assigned job", printerID)
		}

		if err := tx.Printers.SetCurrentJob(ctx, printerID, &jobID); err != nil {
			return err
		}
		printer, err = tx.Printers.GetByID(ctx, printerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return printer, nil
}

// StartPrinting moves a waiting job to printing. The job must be
// printable and already assigned to a printer; it leaves the queue and
// its priority slot is released.
func (m *Manager) StartPrinting(ctx context.Context, jobID int64) (*db.Job, error) {
	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != db.JobStateWaiting || !job.CanBePrinted {
			return db.InvalidStatef("the job to start needs to be a printable job in the 'waiting' state")
		}
		printer, err := tx.Printers.GetByCurrentJob(ctx, jobID)
		if err != nil {
			return err
		}
		if printer == nil {
			return db.InvalidStatef("the job needs an assigned printer to move to the 'printing' state")
		}

		file, err := tx.Files.GetByID(ctx, job.FileID)
		if err != nil {
			return err
		}
		if err := tx.Jobs.MarkPrinting(ctx, jobID, time.Now(), file.EstimatedPrintingTimeS); err != nil {
			return err
		}

		job, err = tx.Jobs.GetByID(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.notifyJob(job, db.JobStateWaiting, db.JobStatePrinting)
	return job, nil
}

// FinishJob marks a printing job as finished and snapshots the assigned
// printer's live extruder configuration into the job's used fields.
func (m *Manager) FinishJob(ctx context.Context, jobID int64) (*db.Job, error) {
	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != db.JobStatePrinting {
			return db.InvalidStatef("the job needs to be in the 'printing' state to change to 'finished'")
		}
		printer, err := tx.Printers.GetByCurrentJob(ctx, jobID)
		if err != nil {
			return err
		}
		if printer == nil {
			return db.InvalidStatef("the job has no assigned printer")
		}

		if err := tx.Jobs.MarkFinished(ctx, jobID, time.Now()); err != nil {
			return err
		}

		jobExtruders, err := tx.Jobs.ListExtruders(ctx, jobID)
		if err != nil {
			return err
		}
		for _, jobExtruder := range jobExtruders {
			printerExtruder, err := tx.Printers.GetExtruder(ctx, printer.ID, jobExtruder.ExtruderIndex)
			if err != nil {
				return err
			}
			if err := tx.Jobs.SetExtruderUsed(ctx, jobExtruder.ID,
				printerExtruder.MaterialID, printerExtruder.ExtruderTypeID); err != nil {
				return err
			}
		}

		job, err = tx.Jobs.GetByID(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.notifyJob(job, db.JobStatePrinting, db.JobStateFinished)
	return job, nil
}

// MarkJobDone closes out a finished job, releases its printer and folds
// the outcome into the printer's fleet statistics.
func (m *Manager) MarkJobDone(ctx context.Context, jobID int64, succeeded bool) (*db.Job, error) {
	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != db.JobStateFinished {
			return db.InvalidStatef("the job needs to be in the 'finished' state to change to 'done'")
		}

		printer, err := tx.Printers.GetByCurrentJob(ctx, jobID)
		if err != nil {
			return err
		}
		if err := tx.Jobs.MarkDone(ctx, jobID, succeeded); err != nil {
			return err
		}
		if printer != nil {
			if err := tx.Printers.SetCurrentJob(ctx, printer.ID, nil); err != nil {
				return err
			}
			if job.StartedAt != nil && job.FinishedAt != nil {
				printingTime := job.FinishedAt.Sub(*job.StartedAt)
				if err := tx.Printers.AddFinishedPrint(ctx, printer.ID, succeeded, printingTime); err != nil {
					return err
				}
			}
		}

		job, err = tx.Jobs.GetByID(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.notifyJob(job, db.JobStateFinished, db.JobStateDone)
	return job, nil
}

// RequeueJob returns an interrupted printing/finished job to the queue,
// at the head when toHead is set, otherwise at the tail. The retry
// counter goes up by one and the per-run fields are cleared.
func (m *Manager) RequeueJob(ctx context.Context, jobID int64, toHead bool) (*db.Job, error) {
	var (
		job  *db.Job
		from db.JobState
	)
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		from = job.State
		if from != db.JobStatePrinting && from != db.JobStateFinished {
			return db.InvalidStatef("the job to requeue needs to be in the 'printing' or 'finished' state")
		}
		if err := m.moveToQueue(ctx, tx, job, toHead, job.Retries+1); err != nil {
			return err
		}
		if from == db.JobStatePrinting {
			// The run was cut short rather than completed.
			return tx.Jobs.SetInterrupted(ctx, job.ID, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	job, err = m.store.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	m.notifyJob(job, from, db.JobStateWaiting)
	return job, nil
}

// ReprintJob re-enqueues a done job as a fresh tail entry with the retry
// counter reset.
func (m *Manager) ReprintJob(ctx context.Context, jobID int64) (*db.Job, error) {
	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != db.JobStateDone {
			return db.InvalidStatef("the job to reprint needs to be in the 'done' state")
		}
		return m.moveToQueue(ctx, tx, job, false, 0)
	})
	if err != nil {
		return nil, err
	}
	job, err = m.store.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	m.notifyJob(job, db.JobStateDone, db.JobStateWaiting)
	return job, nil
}

// moveToQueue is the shared re-enqueue path of RequeueJob and ReprintJob:
// recompute printability, pick the queue slot, reset the per-run fields
// and detach the job from whichever printer held it.
func (m *Manager) moveToQueue(ctx context.Context, tx *db.Store, job *db.Job, toHead bool, retries int) error {
	printable, err := isPrintable(ctx, tx, job.ID)
	if err != nil {
		return err
	}

	var priority int64
	if toHead {
		priority, err = headPriority(ctx, tx)
	} else {
		priority, err = tailPriority(ctx, tx)
	}
	if err != nil {
		return err
	}

	if err := tx.Jobs.MarkEnqueued(ctx, job.ID, priority, printable, retries); err != nil {
		return err
	}
	if err := tx.Jobs.ClearExtrudersUsed(ctx, job.ID); err != nil {
		return err
	}
	return tx.Printers.ClearCurrentJobByJob(ctx, job.ID)
}

// ReorderJob moves a waiting job to immediately follow another waiting
// job in the queue, or to the head when afterJobID is nil.
func (m *Manager) ReorderJob(ctx context.Context, jobID int64, afterJobID *int64) (*db.Job, error) {
	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != db.JobStateWaiting {
			return db.InvalidStatef("the job to reorder needs to be in the 'waiting' state")
		}

		var after *db.Job
		if afterJobID != nil {
			if *afterJobID == jobID {
				return db.InvalidParameterf("the job to reorder needs to be different from the 'after' job")
			}
			after, err = tx.Jobs.GetByID(ctx, *afterJobID)
			if err != nil {
				return err
			}
			if after.State != db.JobStateWaiting {
				return db.InvalidStatef("the 'after' job needs to be in the 'waiting' state")
			}
		}

		if err := reorderAfter(ctx, tx, job, after); err != nil {
			return err
		}
		job, err = tx.Jobs.GetByID(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// DeleteJob removes a job in any state together with its dependent rows,
// releasing its printer if one still holds it.
func (m *Manager) DeleteJob(ctx context.Context, jobID int64) error {
	return m.store.WithTx(ctx, func(tx *db.Store) error {
		if _, err := tx.Jobs.GetByID(ctx, jobID); err != nil {
			return err
		}
		if err := tx.Printers.ClearCurrentJobByJob(ctx, jobID); err != nil {
			return err
		}
		return tx.Jobs.Delete(ctx, jobID)
	})
}

// CheckPrintable reports whether the job could run on at least one
// operational printer right now. Pure; repeated calls without state
// changes return the same answer.
func (m *Manager) CheckPrintable(ctx context.Context, jobID int64) (bool, error) {
	if _, err := m.store.Jobs.GetByID(ctx, jobID); err != nil {
		return false, err
	}
	return isPrintable(ctx, m.store, jobID)
}

// UsablePrinters returns the operational printers able to run the job.
func (m *Manager) UsablePrinters(ctx context.Context, jobID int64) ([]*db.Printer, error) {
	if _, err := m.store.Jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return usablePrinters(ctx, m.store, jobID)
}

// PeekQueueHead returns the printable waiting job next in line, or nil
// when the queue holds no printable job.
func (m *Manager) PeekQueueHead(ctx context.Context) (*db.Job, error) {
	return m.store.Jobs.PeekQueueHead(ctx)
}

// CountQueued counts the waiting jobs, optionally only the printable ones.
func (m *Manager) CountQueued(ctx context.Context, onlyPrintable bool) (int, error) {
	return m.store.Jobs.CountWaiting(ctx, onlyPrintable)
}

// QueueStats returns both queue counters in one call.
func (m *Manager) QueueStats(ctx context.Context) (*QueueStats, error) {
	waiting, err := m.store.Jobs.CountWaiting(ctx, false)
	if err != nil {
		return nil, err
	}
	printable, err := m.store.Jobs.CountWaiting(ctx, true)
	if err != nil {
		return nil, err
	}
	return &QueueStats{Waiting: waiting, Printable: printable}, nil
}

// RefreshPrintability recomputes can_be_printed for every waiting job.
// Called whenever a printer's state or extruder configuration changes,
// and once at startup.
func (m *Manager) RefreshPrintability(ctx context.Context) error {
	return m.store.WithTx(ctx, func(tx *db.Store) error {
		jobs, err := tx.Jobs.ListByState(ctx, db.JobStateWaiting)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			printable, err := isPrintable(ctx, tx, job.ID)
			if err != nil {
				return err
			}
			if printable != job.CanBePrinted {
				if err := tx.Jobs.SetCanBePrinted(ctx, job.ID, printable); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SetJobProgress records a printer's progress report for its running job.
func (m *Manager) SetJobProgress(ctx context.Context, jobID int64, progress float64, timeLeft *time.Duration) (*db.Job, error) {
	if progress < 0 || progress > 100 {
		return nil, db.InvalidParameterf("the 'progress' parameter needs to be between 0 and 100")
	}

	var job *db.Job
	err := m.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		job, err = tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State != db.JobStatePrinting {
			return db.InvalidStatef("progress can only be reported for a job in the 'printing' state")
		}

		var timeLeftS *int64
		if timeLeft != nil {
			seconds := int64(*timeLeft / time.Second)
			timeLeftS = &seconds
		}
		if err := tx.Jobs.SetProgress(ctx, jobID, progress, timeLeftS); err != nil {
			return err
		}
		job, err = tx.Jobs.GetByID(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
