package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every operation can run
// standalone or inside an enclosing transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store bundles the per-entity operations over one database handle.
type Store struct {
	conn *sql.DB

	Jobs     *JobOperations
	Printers *PrinterOperations
	Users    *UserOperations
	Files    *FileOperations
	Catalog  *CatalogOperations
	Webhooks *WebhookOperations
	Settings *SettingsOperations
}

func NewStore(conn *sql.DB) *Store {
	s := &Store{conn: conn}
	s.bind(conn)
	return s
}

func (s *Store) bind(q DBTX) {
	s.Jobs = &JobOperations{q}
	s.Printers = &PrinterOperations{q}
	s.Users = &UserOperations{q}
	s.Files = &FileOperations{q}
	s.Catalog = &CatalogOperations{q}
	s.Webhooks = &WebhookOperations{q}
	s.Settings = &SettingsOperations{q}
}

// WithTx runs fn against a Store bound to a single write transaction.
// The connection is opened with _txlock=immediate, so the write lock is
// taken up front and concurrent mutators serialize instead of racing the
// next-priority computation.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStore := &Store{conn: s.conn}
	txStore.bind(sqlTx)

	if err := fn(txStore); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// translateErr maps driver-level failures onto the store's error kinds.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	return err
}

type JobOperations struct {
	db DBTX
}

func scanJob(row interface{ Scan(...interface{}) error }) (*Job, error) {
	j := &Job{}
	err := row.Scan(
		&j.ID, &j.Name, &j.UserID, &j.FileID, &j.State, &j.Priority,
		&j.CanBePrinted, &j.Retries, &j.Progress, &j.StartedAt, &j.FinishedAt,
		&j.EstimatedTimeLeftS, &j.Succeeded, &j.Interrupted, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (o *JobOperations) queryJobs(ctx context.Context, query string, args ...interface{}) ([]*Job, error) {
	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (o *JobOperations) Create(ctx context.Context, name string, userID, fileID int64) (*Job, error) {
	result, err := o.db.ExecContext(ctx, InsertJob, name, userID, fileID, JobStateCreated)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", translateErr(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get job id: %w", err)
	}
	return o.GetByID(ctx, id)
}

func (o *JobOperations) GetByID(ctx context.Context, id int64) (*Job, error) {
	j, err := scanJob(o.db.QueryRowContext(ctx, GetJobByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("job %d", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) GetByName(ctx context.Context, name string) (*Job, error) {
	j, err := scanJob(o.db.QueryRowContext(ctx, GetJobByName, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("job %q", name)
		}
		return nil, fmt.Errorf("failed to get job by name: %w", err)
	}
	return j, nil
}

func (o *JobOperations) List(ctx context.Context) ([]*Job, error) {
	return o.queryJobs(ctx, ListJobs)
}

func (o *JobOperations) ListByState(ctx context.Context, state JobState) ([]*Job, error) {
	return o.queryJobs(ctx, ListJobsByState, state)
}

func (o *JobOperations) ListNotDone(ctx context.Context) ([]*Job, error) {
	return o.queryJobs(ctx, ListNotDoneJobs)
}

// ListQueued returns every job holding a priority, head of queue first.
func (o *JobOperations) ListQueued(ctx context.Context) ([]*Job, error) {
	return o.queryJobs(ctx, ListQueuedJobs)
}

// PeekQueueHead returns the printable waiting job with the lowest
// priority, or nil when the queue has no printable job.
func (o *JobOperations) PeekQueueHead(ctx context.Context) (*Job, error) {
	j, err := scanJob(o.db.QueryRowContext(ctx, PeekQueueHead))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue head: %w", err)
	}
	return j, nil
}

func (o *JobOperations) MaxPriority(ctx context.Context) (*int64, error) {
	var p *int64
	if err := o.db.QueryRowContext(ctx, MaxQueuePriority).Scan(&p); err != nil {
		return nil, fmt.Errorf("failed to get max priority: %w", err)
	}
	return p, nil
}

func (o *JobOperations) MinPriority(ctx context.Context) (*int64, error) {
	var p *int64
	if err := o.db.QueryRowContext(ctx, MinQueuePriority).Scan(&p); err != nil {
		return nil, fmt.Errorf("failed to get min priority: %w", err)
	}
	return p, nil
}

func (o *JobOperations) CountWaiting(ctx context.Context, onlyPrintable bool) (int, error) {
	query := CountWaitingJobs
	if onlyPrintable {
		query = CountWaitingPrintableJobs
	}
	var count int
	if err := o.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count waiting jobs: %w", err)
	}
	return count, nil
}

// ShiftRangeUp increments the priority of every queued job with priority
// in (lo, hi). Set-based so the move touches only the affected range.
func (o *JobOperations) ShiftRangeUp(ctx context.Context, lo, hi int64) error {
	if _, err := o.db.ExecContext(ctx, ShiftPrioritiesUp, lo, hi); err != nil {
		return fmt.Errorf("failed to shift priorities up: %w", translateErr(err))
	}
	return nil
}

// ShiftRangeDown decrements the priority of every queued job with priority
// in (lo, hi].
func (o *JobOperations) ShiftRangeDown(ctx context.Context, lo, hi int64) error {
	if _, err := o.db.ExecContext(ctx, ShiftPrioritiesDown, lo, hi); err != nil {
		return fmt.Errorf("failed to shift priorities down: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) SetPriority(ctx context.Context, id int64, priority *int64) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobPriority, priority, id); err != nil {
		return fmt.Errorf("failed to set job priority: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) SetCanBePrinted(ctx context.Context, id int64, canBePrinted bool) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobCanBePrinted, canBePrinted, id); err != nil {
		return fmt.Errorf("failed to set can_be_printed: %w", err)
	}
	return nil
}

func (o *JobOperations) SetProgress(ctx context.Context, id int64, progress float64, timeLeft *int64) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobProgress, progress, timeLeft, id); err != nil {
		return fmt.Errorf("failed to set job progress: %w", err)
	}
	return nil
}

// MarkEnqueued moves the job into the waiting state with the given
// priority, resetting the per-run fields.
func (o *JobOperations) MarkEnqueued(ctx context.Context, id, priority int64, canBePrinted bool, retries int) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobEnqueued, priority, canBePrinted, retries, id); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) MarkPrinting(ctx context.Context, id int64, startedAt time.Time, timeLeft *int64) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobPrinting, startedAt, timeLeft, id); err != nil {
		return fmt.Errorf("failed to mark job printing: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) MarkFinished(ctx context.Context, id int64, finishedAt time.Time) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobFinished, finishedAt, id); err != nil {
		return fmt.Errorf("failed to mark job finished: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) MarkDone(ctx context.Context, id int64, succeeded bool) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobDone, succeeded, id); err != nil {
		return fmt.Errorf("failed to mark job done: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) SetInterrupted(ctx context.Context, id int64, interrupted bool) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobInterrupted, interrupted, id); err != nil {
		return fmt.Errorf("failed to set job interrupted flag: %w", err)
	}
	return nil
}

func (o *JobOperations) Delete(ctx context.Context, id int64) error {
	if _, err := o.db.ExecContext(ctx, DeleteJob, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) AddAllowedMaterial(ctx context.Context, jobID, materialID int64, extruderIndex int) error {
	if _, err := o.db.ExecContext(ctx, InsertJobAllowedMaterial, jobID, materialID, extruderIndex); err != nil {
		return fmt.Errorf("failed to add allowed material: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) AddAllowedExtruderType(ctx context.Context, jobID, extruderTypeID int64, extruderIndex int) error {
	if _, err := o.db.ExecContext(ctx, InsertJobAllowedExtruderType, jobID, extruderTypeID, extruderIndex); err != nil {
		return fmt.Errorf("failed to add allowed extruder type: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) AddExtruder(ctx context.Context, jobID int64, extruderIndex int) error {
	if _, err := o.db.ExecContext(ctx, InsertJobExtruder, jobID, extruderIndex); err != nil {
		return fmt.Errorf("failed to add job extruder: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) ClearConstraints(ctx context.Context, jobID int64) error {
	if _, err := o.db.ExecContext(ctx, DeleteJobAllowedMaterials, jobID); err != nil {
		return fmt.Errorf("failed to clear allowed materials: %w", err)
	}
	if _, err := o.db.ExecContext(ctx, DeleteJobAllowedExtruderTypes, jobID); err != nil {
		return fmt.Errorf("failed to clear allowed extruder types: %w", err)
	}
	if _, err := o.db.ExecContext(ctx, DeleteJobExtruders, jobID); err != nil {
		return fmt.Errorf("failed to clear job extruders: %w", err)
	}
	return nil
}

// AllowedMaterialIDs returns the ids of the materials accepted at one
// extruder index. Empty means unconstrained.
func (o *JobOperations) AllowedMaterialIDs(ctx context.Context, jobID int64, extruderIndex int) ([]int64, error) {
	rows, err := o.db.QueryContext(ctx, ListJobAllowedMaterialsByIndex, jobID, extruderIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed materials: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var m JobAllowedMaterial
		if err := rows.Scan(&m.ID, &m.JobID, &m.MaterialID, &m.ExtruderIndex); err != nil {
			return nil, fmt.Errorf("failed to scan allowed material: %w", err)
		}
		ids = append(ids, m.MaterialID)
	}
	return ids, rows.Err()
}

func (o *JobOperations) AllowedExtruderTypeIDs(ctx context.Context, jobID int64, extruderIndex int) ([]int64, error) {
	rows, err := o.db.QueryContext(ctx, ListJobAllowedExtruderTypesByIndex, jobID, extruderIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed extruder types: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var e JobAllowedExtruderType
		if err := rows.Scan(&e.ID, &e.JobID, &e.ExtruderTypeID, &e.ExtruderIndex); err != nil {
			return nil, fmt.Errorf("failed to scan allowed extruder type: %w", err)
		}
		ids = append(ids, e.ExtruderTypeID)
	}
	return ids, rows.Err()
}

func (o *JobOperations) ListExtruders(ctx context.Context, jobID int64) ([]*JobExtruder, error) {
	rows, err := o.db.QueryContext(ctx, ListJobExtruders, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job extruders: %w", err)
	}
	defer rows.Close()

	var extruders []*JobExtruder
	for rows.Next() {
		e := &JobExtruder{}
		if err := rows.Scan(&e.ID, &e.JobID, &e.ExtruderIndex, &e.UsedMaterialID, &e.UsedExtruderTypeID); err != nil {
			return nil, fmt.Errorf("failed to scan job extruder: %w", err)
		}
		extruders = append(extruders, e)
	}
	return extruders, rows.Err()
}

func (o *JobOperations) SetExtruderUsed(ctx context.Context, jobExtruderID int64, materialID, extruderTypeID *int64) error {
	if _, err := o.db.ExecContext(ctx, UpdateJobExtruderUsed, materialID, extruderTypeID, jobExtruderID); err != nil {
		return fmt.Errorf("failed to set job extruder used data: %w", translateErr(err))
	}
	return nil
}

func (o *JobOperations) ClearExtrudersUsed(ctx context.Context, jobID int64) error {
	if _, err := o.db.ExecContext(ctx, ClearJobExtrudersUsed, jobID); err != nil {
		return fmt.Errorf("failed to clear job extruder used data: %w", err)
	}
	return nil
}

type PrinterOperations struct {
	db DBTX
}

func scanPrinter(row interface{ Scan(...interface{}) error }) (*Printer, error) {
	p := &Printer{}
	err := row.Scan(
		&p.ID, &p.ModelID, &p.State, &p.CurrentJobID, &p.Name, &p.SerialNumber,
		&p.IPAddress, &p.RegisteredAt, &p.TotalSuccessPrints, &p.TotalFailedPrints,
		&p.TotalPrintingTimeS)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (o *PrinterOperations) queryPrinters(ctx context.Context, query string, args ...interface{}) ([]*Printer, error) {
	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query printers: %w", err)
	}
	defer rows.Close()

	var printers []*Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

func (o *PrinterOperations) Create(ctx context.Context, modelID int64, name, serialNumber, ipAddress string) (*Printer, error) {
	result, err := o.db.ExecContext(ctx, InsertPrinter, modelID, PrinterStateOffline, name, serialNumber, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create printer: %w", translateErr(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get printer id: %w", err)
	}
	return o.GetByID(ctx, id)
}

func (o *PrinterOperations) GetByID(ctx context.Context, id int64) (*Printer, error) {
	p, err := scanPrinter(o.db.QueryRowContext(ctx, GetPrinterByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("printer %d", id)
		}
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}
	return p, nil
}

func (o *PrinterOperations) GetBySerial(ctx context.Context, serialNumber string) (*Printer, error) {
	p, err := scanPrinter(o.db.QueryRowContext(ctx, GetPrinterBySerial, serialNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("printer with serial %q", serialNumber)
		}
		return nil, fmt.Errorf("failed to get printer by serial: %w", err)
	}
	return p, nil
}

// GetByCurrentJob returns the printer a job is assigned to, or nil when
// no printer holds the job.
func (o *PrinterOperations) GetByCurrentJob(ctx context.Context, jobID int64) (*Printer, error) {
	p, err := scanPrinter(o.db.QueryRowContext(ctx, GetPrinterByCurrentJob, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get printer by current job: %w", err)
	}
	return p, nil
}

func (o *PrinterOperations) List(ctx context.Context) ([]*Printer, error) {
	return o.queryPrinters(ctx, ListPrinters)
}

func (o *PrinterOperations) ListOperational(ctx context.Context) ([]*Printer, error) {
	return o.queryPrinters(ctx, ListOperationalPrinters)
}

func (o *PrinterOperations) SetState(ctx context.Context, id int64, state PrinterState) error {
	if _, err := o.db.ExecContext(ctx, UpdatePrinterState, state, id); err != nil {
		return fmt.Errorf("failed to set printer state: %w", err)
	}
	return nil
}

func (o *PrinterOperations) SetCurrentJob(ctx context.Context, id int64, jobID *int64) error {
	if _, err := o.db.ExecContext(ctx, UpdatePrinterCurrentJob, jobID, id); err != nil {
		return fmt.Errorf("failed to set printer current job: %w", translateErr(err))
	}
	return nil
}

func (o *PrinterOperations) ClearCurrentJobByJob(ctx context.Context, jobID int64) error {
	if _, err := o.db.ExecContext(ctx, ClearPrinterCurrentJobByJob, jobID); err != nil {
		return fmt.Errorf("failed to clear printer current job: %w", err)
	}
	return nil
}

// AddFinishedPrint accumulates the fleet statistics for one completed run.
func (o *PrinterOperations) AddFinishedPrint(ctx context.Context, id int64, success bool, printingTime time.Duration) error {
	successInc, failedInc := 0, 1
	if success {
		successInc, failedInc = 1, 0
	}
	seconds := int64(printingTime / time.Second)
	if _, err := o.db.ExecContext(ctx, AddPrinterFinishedPrint, successInc, failedInc, seconds, id); err != nil {
		return fmt.Errorf("failed to record finished print: %w", err)
	}
	return nil
}

func (o *PrinterOperations) Delete(ctx context.Context, id int64) error {
	if _, err := o.db.ExecContext(ctx, DeletePrinter, id); err != nil {
		return fmt.Errorf("failed to delete printer: %w", translateErr(err))
	}
	return nil
}

func (o *PrinterOperations) UpsertExtruder(ctx context.Context, printerID int64, index int, materialID, extruderTypeID *int64) error {
	if _, err := o.db.ExecContext(ctx, UpsertPrinterExtruder, printerID, index, materialID, extruderTypeID); err != nil {
		return fmt.Errorf("failed to upsert printer extruder: %w", translateErr(err))
	}
	return nil
}

func (o *PrinterOperations) ListExtruders(ctx context.Context, printerID int64) ([]*PrinterExtruder, error) {
	rows, err := o.db.QueryContext(ctx, ListPrinterExtruders, printerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query printer extruders: %w", err)
	}
	defer rows.Close()

	var extruders []*PrinterExtruder
	for rows.Next() {
		e := &PrinterExtruder{}
		if err := rows.Scan(&e.ID, &e.PrinterID, &e.Index, &e.MaterialID, &e.ExtruderTypeID); err != nil {
			return nil, fmt.Errorf("failed to scan printer extruder: %w", err)
		}
		extruders = append(extruders, e)
	}
	return extruders, rows.Err()
}

func (o *PrinterOperations) GetExtruder(ctx context.Context, printerID int64, index int) (*PrinterExtruder, error) {
	e := &PrinterExtruder{}
	err := o.db.QueryRowContext(ctx, GetPrinterExtruderByIndex, printerID, index).
		Scan(&e.ID, &e.PrinterID, &e.Index, &e.MaterialID, &e.ExtruderTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("printer %d extruder %d", printerID, index)
		}
		return nil, fmt.Errorf("failed to get printer extruder: %w", err)
	}
	return e, nil
}

type UserOperations struct {
	db DBTX
}

func (o *UserOperations) Create(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, InvalidParameterf("the 'username' parameter can't be an empty string")
	}
	result, err := o.db.ExecContext(ctx, InsertUser, username)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", translateErr(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}
	return o.GetByID(ctx, id)
}

func (o *UserOperations) GetByID(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	err := o.db.QueryRowContext(ctx, GetUserByID, id).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("user %d", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (o *UserOperations) GetByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := o.db.QueryRowContext(ctx, GetUserByUsername, username).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("user %q", username)
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

type FileOperations struct {
	db DBTX
}

func (o *FileOperations) Create(ctx context.Context, f *File) error {
	if f.Name == "" {
		return InvalidParameterf("the 'name' parameter can't be an empty string")
	}
	result, err := o.db.ExecContext(ctx, InsertFile,
		f.UserID, f.Name, f.StoredName, f.EstimatedPrintingTimeS, f.EstimatedNeededMaterial)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", translateErr(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get file id: %w", err)
	}
	f.ID = id
	return nil
}

func (o *FileOperations) GetByID(ctx context.Context, id int64) (*File, error) {
	f := &File{}
	err := o.db.QueryRowContext(ctx, GetFileByID, id).Scan(
		&f.ID, &f.UserID, &f.Name, &f.StoredName,
		&f.EstimatedPrintingTimeS, &f.EstimatedNeededMaterial, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("file %d", id)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

func (o *FileOperations) ListByUser(ctx context.Context, userID int64) ([]*File, error) {
	rows, err := o.db.QueryContext(ctx, ListFilesByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.StoredName,
			&f.EstimatedPrintingTimeS, &f.EstimatedNeededMaterial, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CatalogOperations covers the static reference data: printer models,
// materials and extruder types.
type CatalogOperations struct {
	db DBTX
}

func (o *CatalogOperations) CreatePrinterModel(ctx context.Context, m *PrinterModel) error {
	result, err := o.db.ExecContext(ctx, InsertPrinterModel, m.Name, m.Width, m.Depth, m.Height)
	if err != nil {
		return fmt.Errorf("failed to create printer model: %w", translateErr(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get printer model id: %w", err)
	}
	m.ID = id
	return nil
}

func (o *CatalogOperations) GetPrinterModel(ctx context.Context, id int64) (*PrinterModel, error) {
	m := &PrinterModel{}
	err := o.db.QueryRowContext(ctx, GetPrinterModelByID, id).Scan(&m.ID, &m.Name, &m.Width, &m.Depth, &m.Height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("printer model %d", id)
		}
		return nil, fmt.Errorf("failed to get printer model: %w", err)
	}
	return m, nil
}

func (o *CatalogOperations) CreateMaterial(ctx context.Context, m *Material) error {
	result, err := o.db.ExecContext(ctx, InsertMaterial,
		m.Type, m.Color, m.Brand, m.GUID, m.PrintTemp, m.BedTemp)
	if err != nil {
		return fmt.Errorf("failed to create material: %w", translateErr(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get material id: %w", err)
	}
	m.ID = id
	return nil
}

func (o *CatalogOperations) GetMaterial(ctx context.Context, id int64) (*Material, error) {
	m := &Material{}
	err := o.db.QueryRowContext(ctx, GetMaterialByID, id).Scan(
		&m.ID, &m.Type, &m.Color, &m.Brand, &m.GUID, &m.PrintTemp, &m.BedTemp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("material %d", id)
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return m, nil
}

func (o *CatalogOperations) ListMaterials(ctx context.Context) ([]*Material, error) {
	rows, err := o.db.QueryContext(ctx, ListMaterials)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	var materials []*Material
	for rows.Next() {
		m := &Material{}
		if err := rows.Scan(&m.ID, &m.Type, &m.Color, &m.Brand, &m.GUID, &m.PrintTemp, &m.BedTemp); err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (o *CatalogOperations) CreateExtruderType(ctx context.Context, e *ExtruderType) error {
	result, err := o.db.ExecContext(ctx, InsertExtruderType, e.Brand, e.NozzleDiameter)
	if err != nil {
		return fmt.Errorf("failed to create extruder type: %w", translateErr(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get extruder type id: %w", err)
	}
	e.ID = id
	return nil
}

func (o *CatalogOperations) GetExtruderType(ctx context.Context, id int64) (*ExtruderType, error) {
	e := &ExtruderType{}
	err := o.db.QueryRowContext(ctx, GetExtruderTypeByID, id).Scan(&e.ID, &e.Brand, &e.NozzleDiameter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("extruder type %d", id)
		}
		return nil, fmt.Errorf("failed to get extruder type: %w", err)
	}
	return e, nil
}

func (o *CatalogOperations) ListExtruderTypes(ctx context.Context) ([]*ExtruderType, error) {
	rows, err := o.db.QueryContext(ctx, ListExtruderTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to list extruder types: %w", err)
	}
	defer rows.Close()

	var types []*ExtruderType
	for rows.Next() {
		e := &ExtruderType{}
		if err := rows.Scan(&e.ID, &e.Brand, &e.NozzleDiameter); err != nil {
			return nil, fmt.Errorf("failed to scan extruder type: %w", err)
		}
		types = append(types, e)
	}
	return types, rows.Err()
}

type WebhookOperations struct {
	db DBTX
}

func (o *WebhookOperations) Create(ctx context.Context, w *Webhook) error {
	result, err := o.db.ExecContext(ctx, InsertWebhook, w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", translateErr(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get webhook id: %w", err)
	}
	w.ID = id
	return nil
}

func (o *WebhookOperations) GetByID(ctx context.Context, id int64) (*Webhook, error) {
	w := &Webhook{}
	err := o.db.QueryRowContext(ctx, GetWebhookByID, id).Scan(
		&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("webhook %d", id)
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return w, nil
}

func (o *WebhookOperations) List(ctx context.Context) ([]*Webhook, error) {
	return o.queryWebhooks(ctx, ListWebhooks)
}

func (o *WebhookOperations) ListForEvent(ctx context.Context, event string) ([]*Webhook, error) {
	pattern := "%\"" + event + "\"%"
	return o.queryWebhooks(ctx, ListWebhooksForEvent, pattern)
}

func (o *WebhookOperations) queryWebhooks(ctx context.Context, query string, args ...interface{}) ([]*Webhook, error) {
	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*Webhook
	for rows.Next() {
		w := &Webhook{}
		if err := rows.Scan(&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (o *WebhookOperations) Update(ctx context.Context, w *Webhook) error {
	if _, err := o.db.ExecContext(ctx, UpdateWebhook, w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled, w.ID); err != nil {
		return fmt.Errorf("failed to update webhook: %w", translateErr(err))
	}
	return nil
}

func (o *WebhookOperations) Delete(ctx context.Context, id int64) error {
	if _, err := o.db.ExecContext(ctx, DeleteWebhook, id); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

type SettingsOperations struct {
	db DBTX
}

func (o *SettingsOperations) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := o.db.QueryRowContext(ctx, GetSetting, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", NotFoundf("setting %q", key)
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (o *SettingsOperations) Set(ctx context.Context, key, value string) error {
	if _, err := o.db.ExecContext(ctx, SetSetting, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

func (o *SettingsOperations) Delete(ctx context.Context, key string) error {
	if _, err := o.db.ExecContext(ctx, DeleteSetting, key); err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}
