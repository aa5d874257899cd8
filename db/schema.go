// ABOUTME: Database schema definitions
// ABOUTME: Creates the sync_runs and sync_log tables for run history
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	status TEXT NOT NULL CHECK(status IN ('running', 'succeeded', 'partial', 'failed')),
	dry_run INTEGER NOT NULL DEFAULT 0,
	contacts INTEGER NOT NULL DEFAULT 0,
	patrons INTEGER NOT NULL DEFAULT 0,
	creates INTEGER NOT NULL DEFAULT 0,
	updates INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failures INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);

CREATE TABLE IF NOT EXISTS sync_log (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	username TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'update')),
	succeeded INTEGER NOT NULL,
	error TEXT,
	logged_at DATETIME NOT NULL,
	FOREIGN KEY (run_id) REFERENCES sync_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sync_log_run ON sync_log(run_id);
CREATE INDEX IF NOT EXISTS idx_sync_log_username ON sync_log(username);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
