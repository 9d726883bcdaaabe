package db

const jobColumns = `id, name, user_id, file_id, state, priority, can_be_printed, retries, progress, started_at, finished_at, estimated_time_left_s, succeeded, interrupted, created_at, updated_at`

const (
	InsertJob = `
		INSERT INTO jobs (name, user_id, file_id, state)
		VALUES (?, ?, ?, ?)
	`

	GetJobByID = `
		SELECT ` + jobColumns + ` FROM jobs WHERE id = ?
	`

	GetJobByName = `
		SELECT ` + jobColumns + ` FROM jobs WHERE name = ?
	`

	ListJobs = `
		SELECT ` + jobColumns + ` FROM jobs ORDER BY id ASC
	`

	ListJobsByState = `
		SELECT ` + jobColumns + ` FROM jobs WHERE state = ? ORDER BY id ASC
	`

	ListNotDoneJobs = `
		SELECT ` + jobColumns + ` FROM jobs WHERE state != 'done' ORDER BY id ASC
	`

	ListQueuedJobs = `
		SELECT ` + jobColumns + ` FROM jobs WHERE priority IS NOT NULL ORDER BY priority ASC
	`

	PeekQueueHead = `
		SELECT ` + jobColumns + ` FROM jobs
		WHERE state = 'waiting' AND can_be_printed = 1
		ORDER BY priority ASC LIMIT 1
	`

	MaxQueuePriority = `
		SELECT MAX(priority) FROM jobs WHERE priority IS NOT NULL
	`

	MinQueuePriority = `
		SELECT MIN(priority) FROM jobs WHERE priority IS NOT NULL
	`

	CountWaitingJobs = `
		SELECT COUNT(*) FROM jobs WHERE state = 'waiting'
	`

	CountWaitingPrintableJobs = `
		SELECT COUNT(*) FROM jobs WHERE state = 'waiting' AND can_be_printed = 1
	`

	// Shift queries implement the reorder range move: only jobs strictly
	// between the old and new position are touched.
	ShiftPrioritiesUp = `
		UPDATE jobs SET priority = priority + 1, updated_at = CURRENT_TIMESTAMP
		WHERE priority IS NOT NULL AND priority > ? AND priority < ?
	`

	ShiftPrioritiesDown = `
		UPDATE jobs SET priority = priority - 1, updated_at = CURRENT_TIMESTAMP
		WHERE priority IS NOT NULL AND priority > ? AND priority <= ?
	`

	UpdateJobPriority = `
		UPDATE jobs SET priority = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	UpdateJobCanBePrinted = `
		UPDATE jobs SET can_be_printed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	UpdateJobProgress = `
		UPDATE jobs SET progress = ?, estimated_time_left_s = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	UpdateJobEnqueued = `
		UPDATE jobs SET state = 'waiting', priority = ?, can_be_printed = ?, retries = ?,
			progress = 0, started_at = NULL, finished_at = NULL, estimated_time_left_s = NULL,
			succeeded = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	UpdateJobPrinting = `
		UPDATE jobs SET state = 'printing', priority = NULL, started_at = ?,
			estimated_time_left_s = ?, interrupted = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	UpdateJobFinished = `
		UPDATE jobs SET state = 'finished', finished_at = ?, progress = 100,
			estimated_time_left_s = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	UpdateJobDone = `
		UPDATE jobs SET state = 'done', succeeded = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	UpdateJobInterrupted = `
		UPDATE jobs SET interrupted = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	DeleteJob = `DELETE FROM jobs WHERE id = ?`
)

const (
	InsertJobAllowedMaterial = `
		INSERT INTO job_allowed_materials (job_id, material_id, extruder_index)
		VALUES (?, ?, ?)
	`

	ListJobAllowedMaterials = `
		SELECT id, job_id, material_id, extruder_index
		FROM job_allowed_materials WHERE job_id = ? ORDER BY id ASC
	`

	ListJobAllowedMaterialsByIndex = `
		SELECT id, job_id, material_id, extruder_index
		FROM job_allowed_materials WHERE job_id = ? AND extruder_index = ? ORDER BY id ASC
	`

	DeleteJobAllowedMaterials = `DELETE FROM job_allowed_materials WHERE job_id = ?`

	InsertJobAllowedExtruderType = `
		INSERT INTO job_allowed_extruder_types (job_id, extruder_type_id, extruder_index)
		VALUES (?, ?, ?)
	`

	ListJobAllowedExtruderTypes = `
		SELECT id, job_id, extruder_type_id, extruder_index
		FROM job_allowed_extruder_types WHERE job_id = ? ORDER BY id ASC
	`

	ListJobAllowedExtruderTypesByIndex = `
		SELECT id, job_id, extruder_type_id, extruder_index
		FROM job_allowed_extruder_types WHERE job_id = ? AND extruder_index = ? ORDER BY id ASC
	`

	DeleteJobAllowedExtruderTypes = `DELETE FROM job_allowed_extruder_types WHERE job_id = ?`

	InsertJobExtruder = `
		INSERT INTO job_extruders (job_id, extruder_index)
		VALUES (?, ?)
	`

	ListJobExtruders = `
		SELECT id, job_id, extruder_index, used_material_id, used_extruder_type_id
		FROM job_extruders WHERE job_id = ? ORDER BY extruder_index ASC
	`

	UpdateJobExtruderUsed = `
		UPDATE job_extruders SET used_material_id = ?, used_extruder_type_id = ?
		WHERE id = ?
	`

	ClearJobExtrudersUsed = `
		UPDATE job_extruders SET used_material_id = NULL, used_extruder_type_id = NULL
		WHERE job_id = ?
	`

	DeleteJobExtruders = `DELETE FROM job_extruders WHERE job_id = ?`
)

const printerColumns = `id, model_id, state, current_job_id, name, serial_number, ip_address, registered_at, total_success_prints, total_failed_prints, total_printing_time_s`

const (
	InsertPrinter = `
		INSERT INTO printers (model_id, state, name, serial_number, ip_address)
		VALUES (?, ?, ?, ?, ?)
	`

	GetPrinterByID = `
		SELECT ` + printerColumns + ` FROM printers WHERE id = ?
	`

	GetPrinterBySerial = `
		SELECT ` + printerColumns + ` FROM printers WHERE serial_number = ?
	`

	GetPrinterByCurrentJob = `
		SELECT ` + printerColumns + ` FROM printers WHERE current_job_id = ?
	`

	ListPrinters = `
		SELECT ` + printerColumns + ` FROM printers ORDER BY id ASC
	`

	ListOperationalPrinters = `
		SELECT ` + printerColumns + ` FROM printers
		WHERE state IN ('idle', 'printing', 'paused') ORDER BY id ASC
	`

	UpdatePrinterState = `
		UPDATE printers SET state = ? WHERE id = ?
	`

	UpdatePrinterCurrentJob = `
		UPDATE printers SET current_job_id = ? WHERE id = ?
	`

	ClearPrinterCurrentJobByJob = `
		UPDATE printers SET current_job_id = NULL WHERE current_job_id = ?
	`

	AddPrinterFinishedPrint = `
		UPDATE printers SET
			total_success_prints = total_success_prints + ?,
			total_failed_prints = total_failed_prints + ?,
			total_printing_time_s = total_printing_time_s + ?
		WHERE id = ?
	`

	DeletePrinter = `DELETE FROM printers WHERE id = ?`

	UpsertPrinterExtruder = `
		INSERT INTO printer_extruders (printer_id, extruder_index, material_id, extruder_type_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(printer_id, extruder_index)
		DO UPDATE SET material_id = excluded.material_id, extruder_type_id = excluded.extruder_type_id
	`

	ListPrinterExtruders = `
		SELECT id, printer_id, extruder_index, material_id, extruder_type_id
		FROM printer_extruders WHERE printer_id = ? ORDER BY extruder_index ASC
	`

	GetPrinterExtruderByIndex = `
		SELECT id, printer_id, extruder_index, material_id, extruder_type_id
		FROM printer_extruders WHERE printer_id = ? AND extruder_index = ?
	`
)

const (
	InsertUser = `INSERT INTO users (username) VALUES (?)`

	GetUserByID = `SELECT id, username, created_at FROM users WHERE id = ?`

	GetUserByUsername = `SELECT id, username, created_at FROM users WHERE username = ?`

	InsertFile = `
		INSERT INTO files (user_id, name, stored_name, estimated_printing_time_s, estimated_needed_material)
		VALUES (?, ?, ?, ?, ?)
	`

	GetFileByID = `
		SELECT id, user_id, name, stored_name, estimated_printing_time_s, estimated_needed_material, created_at
		FROM files WHERE id = ?
	`

	ListFilesByUser = `
		SELECT id, user_id, name, stored_name, estimated_printing_time_s, estimated_needed_material, created_at
		FROM files WHERE user_id = ? ORDER BY id ASC
	`

	InsertPrinterModel = `
		INSERT INTO printer_models (name, width, depth, height) VALUES (?, ?, ?, ?)
	`

	GetPrinterModelByID = `
		SELECT id, name, width, depth, height FROM printer_models WHERE id = ?
	`

	InsertMaterial = `
		INSERT INTO materials (type, color, brand, guid, print_temp, bed_temp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	GetMaterialByID = `
		SELECT id, type, color, brand, guid, print_temp, bed_temp FROM materials WHERE id = ?
	`

	ListMaterials = `
		SELECT id, type, color, brand, guid, print_temp, bed_temp FROM materials ORDER BY id ASC
	`

	InsertExtruderType = `
		INSERT INTO extruder_types (brand, nozzle_diameter) VALUES (?, ?)
	`

	GetExtruderTypeByID = `
		SELECT id, brand, nozzle_diameter FROM extruder_types WHERE id = ?
	`

	ListExtruderTypes = `
		SELECT id, brand, nozzle_diameter FROM extruder_types ORDER BY id ASC
	`
)

const (
	InsertWebhook = `
		INSERT INTO webhooks (name, url, secret, events_json, enabled)
		VALUES (?, ?, ?, ?, ?)
	`

	GetWebhookByID = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE id = ?
	`

	ListWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks ORDER BY name ASC
	`

	ListWebhooksForEvent = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE enabled = 1 AND events_json LIKE ?
	`

	UpdateWebhook = `
		UPDATE webhooks SET name = ?, url = ?, secret = ?, events_json = ?, enabled = ? WHERE id = ?
	`

	DeleteWebhook = `DELETE FROM webhooks WHERE id = ?`
)

const (
	GetSetting = `SELECT value FROM settings WHERE key = ?`

	SetSetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`

	DeleteSetting = `DELETE FROM settings WHERE key = ?`
)
