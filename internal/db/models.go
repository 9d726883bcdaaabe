package db

import (
	"time"
)

// JobState is the closed set of lifecycle states a job moves through.
// States are stored as plain strings; there is no lookup table.
type JobState string

const (
	JobStateCreated  JobState = "created"
	JobStateWaiting  JobState = "waiting"
	JobStatePrinting JobState = "printing"
	JobStateFinished JobState = "finished"
	JobStateDone     JobState = "done"
)

func (s JobState) Valid() bool {
	switch s {
	case JobStateCreated, JobStateWaiting, JobStatePrinting, JobStateFinished, JobStateDone:
		return true
	}
	return false
}

// PrinterState is the closed set of reported printer states. The matcher
// only cares whether a state is operational.
type PrinterState string

const (
	PrinterStateOffline  PrinterState = "offline"
	PrinterStateIdle     PrinterState = "idle"
	PrinterStatePrinting PrinterState = "printing"
	PrinterStatePaused   PrinterState = "paused"
	PrinterStateError    PrinterState = "error"
)

func (s PrinterState) Valid() bool {
	switch s {
	case PrinterStateOffline, PrinterStateIdle, PrinterStatePrinting, PrinterStatePaused, PrinterStateError:
		return true
	}
	return false
}

func (s PrinterState) IsOperational() bool {
	switch s {
	case PrinterStateIdle, PrinterStatePrinting, PrinterStatePaused:
		return true
	}
	return false
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type File struct {
	ID                      int64     `json:"id"`
	UserID                  int64     `json:"user_id"`
	Name                    string    `json:"name"`
	StoredName              string    `json:"stored_name"`
	EstimatedPrintingTimeS  *int64    `json:"estimated_printing_time_s"`
	EstimatedNeededMaterial *float64  `json:"estimated_needed_material"`
	CreatedAt               time.Time `json:"created_at"`
}

// EstimatedPrintingTime returns the slicer estimate, or zero if the file
// carries none.
func (f *File) EstimatedPrintingTime() time.Duration {
	if f.EstimatedPrintingTimeS == nil {
		return 0
	}
	return time.Duration(*f.EstimatedPrintingTimeS) * time.Second
}

type PrinterModel struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

type Material struct {
	ID        int64   `json:"id"`
	Type      string  `json:"type"`
	Color     string  `json:"color"`
	Brand     string  `json:"brand"`
	GUID      string  `json:"guid"`
	PrintTemp float64 `json:"print_temp"`
	BedTemp   float64 `json:"bed_temp"`
}

type ExtruderType struct {
	ID             int64   `json:"id"`
	Brand          string  `json:"brand"`
	NozzleDiameter float64 `json:"nozzle_diameter"`
}

type Printer struct {
	ID                 int64        `json:"id"`
	ModelID            int64        `json:"model_id"`
	State              PrinterState `json:"state"`
	CurrentJobID       *int64       `json:"current_job_id"`
	Name               string       `json:"name"`
	SerialNumber       string       `json:"serial_number"`
	IPAddress          string       `json:"ip_address"`
	RegisteredAt       time.Time    `json:"registered_at"`
	TotalSuccessPrints int64        `json:"total_success_prints"`
	TotalFailedPrints  int64        `json:"total_failed_prints"`
	TotalPrintingTimeS int64        `json:"total_printing_time_s"`
}

// PrinterExtruder is the live physical configuration of one toolhead slot
// (index 0 = right, 1 = left). Material and extruder type may be unset
// while the slot is empty.
type PrinterExtruder struct {
	ID             int64  `json:"id"`
	PrinterID      int64  `json:"printer_id"`
	Index          int    `json:"index"`
	MaterialID     *int64 `json:"material_id"`
	ExtruderTypeID *int64 `json:"extruder_type_id"`
}

type Job struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	UserID int64    `json:"user_id"`
	FileID int64    `json:"file_id"`
	State  JobState `json:"state"`
	// Priority is set iff the job is waiting. Lower value = earlier in
	// the queue. Unique among waiting jobs.
	Priority           *int64     `json:"priority"`
	CanBePrinted       bool       `json:"can_be_printed"`
	Retries            int        `json:"retries"`
	Progress           float64    `json:"progress"`
	StartedAt          *time.Time `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at"`
	EstimatedTimeLeftS *int64     `json:"estimated_time_left_s"`
	Succeeded          *bool      `json:"succeeded"`
	Interrupted        bool       `json:"interrupted"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// JobAllowedMaterial restricts which material may be loaded at one extruder
// index for the job to be printable. No rows for an index means any material
// is accepted there.
type JobAllowedMaterial struct {
	ID            int64 `json:"id"`
	JobID         int64 `json:"job_id"`
	MaterialID    int64 `json:"material_id"`
	ExtruderIndex int   `json:"extruder_index"`
}

type JobAllowedExtruderType struct {
	ID             int64 `json:"id"`
	JobID          int64 `json:"job_id"`
	ExtruderTypeID int64 `json:"extruder_type_id"`
	ExtruderIndex  int   `json:"extruder_index"`
}

// JobExtruder records one extruder index the job actually uses. The used
// material/type are copied from the printer when the job finishes and
// cleared again on requeue/reprint.
type JobExtruder struct {
	ID                 int64  `json:"id"`
	JobID              int64  `json:"job_id"`
	ExtruderIndex      int    `json:"extruder_index"`
	UsedMaterialID     *int64 `json:"used_material_id"`
	UsedExtruderTypeID *int64 `json:"used_extruder_type_id"`
}

type Webhook struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Secret     string    `json:"secret,omitempty"`
	EventsJSON string    `json:"events_json"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
