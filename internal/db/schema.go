package db

var schemaMigrations = []Migration{
	{
		Version: "001_initial",
		SQL: `
			CREATE TABLE users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL REFERENCES users(id),
				name TEXT NOT NULL,
				stored_name TEXT NOT NULL UNIQUE,
				estimated_printing_time_s INTEGER,
				estimated_needed_material REAL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE printer_models (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				width REAL NOT NULL,
				depth REAL NOT NULL,
				height REAL NOT NULL
			);

			CREATE TABLE materials (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				type TEXT NOT NULL,
				color TEXT NOT NULL DEFAULT '',
				brand TEXT NOT NULL DEFAULT '',
				guid TEXT NOT NULL DEFAULT '',
				print_temp REAL NOT NULL DEFAULT 0,
				bed_temp REAL NOT NULL DEFAULT 0
			);

			CREATE TABLE extruder_types (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				brand TEXT NOT NULL DEFAULT '',
				nozzle_diameter REAL NOT NULL
			);

			CREATE TABLE jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				user_id INTEGER NOT NULL REFERENCES users(id),
				file_id INTEGER NOT NULL REFERENCES files(id),
				state TEXT NOT NULL DEFAULT 'created',
				priority INTEGER,
				can_be_printed INTEGER NOT NULL DEFAULT 0,
				retries INTEGER NOT NULL DEFAULT 0,
				progress REAL NOT NULL DEFAULT 0,
				started_at DATETIME,
				finished_at DATETIME,
				estimated_time_left_s INTEGER,
				succeeded INTEGER,
				interrupted INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX idx_jobs_priority ON jobs(priority) WHERE priority IS NOT NULL;
			CREATE INDEX idx_jobs_state ON jobs(state);

			CREATE TABLE printers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				model_id INTEGER NOT NULL REFERENCES printer_models(id),
				state TEXT NOT NULL DEFAULT 'offline',
				current_job_id INTEGER REFERENCES jobs(id),
				name TEXT NOT NULL UNIQUE,
				serial_number TEXT NOT NULL UNIQUE,
				ip_address TEXT NOT NULL DEFAULT '',
				registered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				total_success_prints INTEGER NOT NULL DEFAULT 0,
				total_failed_prints INTEGER NOT NULL DEFAULT 0,
				total_printing_time_s INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE printer_extruders (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				printer_id INTEGER NOT NULL REFERENCES printers(id) ON DELETE CASCADE,
				extruder_index INTEGER NOT NULL,
				material_id INTEGER REFERENCES materials(id),
				extruder_type_id INTEGER REFERENCES extruder_types(id),
				UNIQUE(printer_id, extruder_index)
			);

			CREATE TABLE job_allowed_materials (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
				material_id INTEGER NOT NULL REFERENCES materials(id),
				extruder_index INTEGER NOT NULL
			);

			CREATE TABLE job_allowed_extruder_types (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
				extruder_type_id INTEGER NOT NULL REFERENCES extruder_types(id),
				extruder_index INTEGER NOT NULL
			);

			CREATE TABLE job_extruders (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
				extruder_index INTEGER NOT NULL,
				used_material_id INTEGER REFERENCES materials(id),
				used_extruder_type_id INTEGER REFERENCES extruder_types(id),
				UNIQUE(job_id, extruder_index)
			);

			CREATE TABLE webhooks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				url TEXT NOT NULL,
				secret TEXT NOT NULL DEFAULT '',
				events_json TEXT NOT NULL DEFAULT '[]',
				enabled INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
}
