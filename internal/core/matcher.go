package core

import (
	"context"

	"github.com/orrn/printfarm/internal/db"
)

// usablePrinters returns the operational printers whose current extruder
// configuration satisfies every per-index constraint of the job. A printer
// survives only if all of its extruder indexes pass both the material and
// the extruder-type check; an index with no declared constraints accepts
// anything. Read-only.
func usablePrinters(ctx context.Context, store *db.Store, jobID int64) ([]*db.Printer, error) {
	printers, err := store.Printers.ListOperational(ctx)
	if err != nil {
		return nil, err
	}

	var usable []*db.Printer
	for _, printer := range printers {
		ok, err := printerSatisfiesJob(ctx, store, printer, jobID)
		if err != nil {
			return nil, err
		}
		if ok {
			usable = append(usable, printer)
		}
	}
	return usable, nil
}

func printerSatisfiesJob(ctx context.Context, store *db.Store, printer *db.Printer, jobID int64) (bool, error) {
	extruders, err := store.Printers.ListExtruders(ctx, printer.ID)
	if err != nil {
		return false, err
	}

	// The printer's toolhead layout must cover every index the job uses.
	jobExtruders, err := store.Jobs.ListExtruders(ctx, jobID)
	if err != nil {
		return false, err
	}
	indexes := make(map[int]bool, len(extruders))
	for _, extruder := range extruders {
		indexes[extruder.Index] = true
	}
	for _, jobExtruder := range jobExtruders {
		if !indexes[jobExtruder.ExtruderIndex] {
			return false, nil
		}
	}

	for _, extruder := range extruders {
		allowedMaterials, err := store.Jobs.AllowedMaterialIDs(ctx, jobID, extruder.Index)
		if err != nil {
			return false, err
		}
		if len(allowedMaterials) > 0 && !containsID(allowedMaterials, extruder.MaterialID) {
			return false, nil
		}

		allowedTypes, err := store.Jobs.AllowedExtruderTypeIDs(ctx, jobID, extruder.Index)
		if err != nil {
			return false, err
		}
		if len(allowedTypes) > 0 && !containsID(allowedTypes, extruder.ExtruderTypeID) {
			return false, nil
		}
	}
	return true, nil
}

func containsID(ids []int64, id *int64) bool {
	if id == nil {
		return false
	}
	for _, candidate := range ids {
		if candidate == *id {
			return true
		}
	}
	return false
}

// isPrintable reports whether at least one operational printer can run the
// job right now.
func isPrintable(ctx context.Context, store *db.Store, jobID int64) (bool, error) {
	printers, err := usablePrinters(ctx, store, jobID)
	if err != nil {
		return false, err
	}
	return len(printers) > 0, nil
}
