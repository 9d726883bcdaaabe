package core

import (
	"context"
	"time"

	"github.com/orrn/printfarm/internal/db"
)

// PrinterManager handles the fleet side: registration, state reports and
// extruder configuration. Any change that can affect which jobs are
// runnable triggers a printability refresh on the queue.
type PrinterManager struct {
	store *db.Store
	jobs  *Manager
	sinks []EventSink
}

func NewPrinterManager(store *db.Store, jobs *Manager, sinks ...EventSink) *PrinterManager {
	return &PrinterManager{store: store, jobs: jobs, sinks: sinks}
}

func (pm *PrinterManager) notifyPrinter(printer *db.Printer, from, to db.PrinterState) {
	for _, sink := range pm.sinks {
		sink.PrinterStateChanged(printer, from, to)
	}
}

// RegisterPrinter adds a printer to the fleet with the given extruder
// layout. New printers start offline until they report in.
func (pm *PrinterManager) RegisterPrinter(ctx context.Context, modelID int64, name, serialNumber, ipAddress string, extruderCount int) (*db.Printer, error) {
	if name == "" {
		return nil, db.InvalidParameterf("the 'name' parameter can't be an empty string")
	}
	if serialNumber == "" {
		return nil, db.InvalidParameterf("the 'serialNumber' parameter can't be an empty string")
	}
	if extruderCount < 1 {
		return nil, db.InvalidParameterf("the 'extruderCount' parameter needs to be at least 1")
	}

	var printer *db.Printer
	err := pm.store.WithTx(ctx, func(tx *db.Store) error {
		if _, err := tx.Catalog.GetPrinterModel(ctx, modelID); err != nil {
			return err
		}
		var err error
		printer, err = tx.Printers.Create(ctx, modelID, name, serialNumber, ipAddress)
		if err != nil {
			return err
		}
		for index := 0; index < extruderCount; index++ {
			if err := tx.Printers.UpsertExtruder(ctx, printer.ID, index, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return printer, nil
}

// SetPrinterState records a printer's reported state. Moving in or out of
// an operational state changes which jobs are printable, so the waiting
// queue is recomputed afterwards.
func (pm *PrinterManager) SetPrinterState(ctx context.Context, printerID int64, state db.PrinterState) (*db.Printer, error) {
	if !state.Valid() {
		return nil, db.InvalidParameterf("unknown printer state %q", state)
	}

	var (
		printer *db.Printer
		from    db.PrinterState
	)
	err := pm.store.WithTx(ctx, func(tx *db.Store) error {
		var err error
		printer, err = tx.Printers.GetByID(ctx, printerID)
		if err != nil {
			return err
		}
		from = printer.State
		if from == state {
			return nil
		}
		if err := tx.Printers.SetState(ctx, printerID, state); err != nil {
			return err
		}
		printer, err = tx.Printers.GetByID(ctx, printerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if from == printer.State {
		return printer, nil
	}

	if err := pm.jobs.RefreshPrintability(ctx); err != nil {
		return nil, err
	}
	pm.notifyPrinter(printer, from, printer.State)
	return printer, nil
}

// SetExtruderConfig records the material and extruder type loaded at one
// extruder index. Passing nil clears the slot. The queue's printability
// is recomputed afterwards.
func (pm *PrinterManager) SetExtruderConfig(ctx context.Context, printerID int64, index int, materialID, extruderTypeID *int64) error {
	if index < 0 {
		return db.InvalidParameterf("the 'index' parameter can't be negative")
	}

	err := pm.store.WithTx(ctx, func(tx *db.Store) error {
		if _, err := tx.Printers.GetByID(ctx, printerID); err != nil {
			return err
		}
		if materialID != nil {
			if _, err := tx.Catalog.GetMaterial(ctx, *materialID); err != nil {
				return err
			}
		}
		if extruderTypeID != nil {
			if _, err := tx.Catalog.GetExtruderType(ctx, *extruderTypeID); err != nil {
				return err
			}
		}
		return tx.Printers.UpsertExtruder(ctx, printerID, index, materialID, extruderTypeID)
	})
	if err != nil {
		return err
	}
	return pm.jobs.RefreshPrintability(ctx)
}

// ReportProgress forwards a printer's progress report to its running job.
func (pm *PrinterManager) ReportProgress(ctx context.Context, printerID int64, progress float64, timeLeft *time.Duration) (*db.Job, error) {
	printer, err := pm.store.Printers.GetByID(ctx, printerID)
	if err != nil {
		return nil, err
	}
	if printer.CurrentJobID == nil {
		return nil, db.InvalidStatef("printer %d has no assigned job", printerID)
	}
	return pm.jobs.SetJobProgress(ctx, *printer.CurrentJobID, progress, timeLeft)
}

// InitializePrinterStates forces every printer to offline. Run once at
// startup: whatever state a printer reported before the restart is stale
// until it reports again.
func (pm *PrinterManager) InitializePrinterStates(ctx context.Context) error {
	err := pm.store.WithTx(ctx, func(tx *db.Store) error {
		printers, err := tx.Printers.List(ctx)
		if err != nil {
			return err
		}
		for _, printer := range printers {
			if printer.State == db.PrinterStateOffline {
				continue
			}
			if err := tx.Printers.SetState(ctx, printer.ID, db.PrinterStateOffline); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return pm.jobs.RefreshPrintability(ctx)
}

// DeletePrinter removes a printer from the fleet. A printer holding a job
// can't be removed.
func (pm *PrinterManager) DeletePrinter(ctx context.Context, printerID int64) error {
	err := pm.store.WithTx(ctx, func(tx *db.Store) error {
		printer, err := tx.Printers.GetByID(ctx, printerID)
		if err != nil {
			return err
		}
		if printer.CurrentJobID != nil {
			return db.InvalidStatef("can't delete a printer with an assigned job")
		}
		return tx.Printers.Delete(ctx, printerID)
	})
	if err != nil {
		return err
	}
	return pm.jobs.RefreshPrintability(ctx)
}
