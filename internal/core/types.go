package core

import (
	"github.com/orrn/printfarm/internal/db"
)

// EventSink receives lifecycle notifications after a transition has
// committed. Implemented by the webhook sender and the metrics collector.
type EventSink interface {
	JobStateChanged(job *db.Job, from, to db.JobState)
	PrinterStateChanged(printer *db.Printer, from, to db.PrinterState)
}

// ConstraintRef names one allowed material or extruder type, scoped to a
// physical extruder index.
type ConstraintRef struct {
	ID            int64 `json:"id"`
	ExtruderIndex int   `json:"extruder_index"`
}

// JobConstraints is the full printability declaration of a job: which
// materials/extruder types are acceptable per index, and which extruder
// indexes the sliced file actually uses. Empty allowed lists at an index
// mean the index is unconstrained.
type JobConstraints struct {
	AllowedMaterials     []ConstraintRef `json:"allowed_materials"`
	AllowedExtruderTypes []ConstraintRef `json:"allowed_extruder_types"`
	UsedExtruderIndexes  []int           `json:"used_extruder_indexes"`
}

type QueueStats struct {
	Waiting   int `json:"waiting"`
	Printable int `json:"printable"`
}
