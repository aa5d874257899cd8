// ABOUTME: Database operations for sync_runs and sync_log tables
// ABOUTME: Records sync runs and per-patron outcomes and lists them for status output
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/patronsync/models"
	"github.com/oklog/ulid/v2"
)

var (
	ErrRunNotFound = errors.New("sync run not found")
	ErrInvalidRun  = errors.New("invalid sync run")
)

// RunsRepository stores sync run history. It satisfies sync.RunRecorder.
type RunsRepository struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewRunsRepository creates a new runs repository.
func NewRunsRepository(db *sql.DB) *RunsRepository {
	return &RunsRepository{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// StartRun inserts a run row.
func (r *RunsRepository) StartRun(ctx context.Context, run *models.SyncRun) error {
	if run == nil || run.ID == uuid.Nil {
		return ErrInvalidRun
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at, status, dry_run)
		VALUES (?, ?, ?, ?)
	`, run.ID.String(), run.StartedAt.UTC(), run.Status, run.DryRun)
	if err != nil {
		return fmt.Errorf("failed to start sync run: %w", err)
	}
	return nil
}

// LogOutcome appends one patron write result to the run's log.
func (r *RunsRepository) LogOutcome(ctx context.Context, entry *models.SyncLogEntry) error {
	if entry == nil || entry.RunID == uuid.Nil {
		return ErrInvalidRun
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now()
	}
	if entry.ID == "" {
		entry.ID = r.newID(entry.LoggedAt)
	}

	var errMsg sql.NullString
	if entry.Error != "" {
		errMsg = sql.NullString{String: entry.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_log (id, run_id, username, action, succeeded, error, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.RunID.String(), entry.Username, entry.Action, entry.Succeeded, errMsg, entry.LoggedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counts of a run.
func (r *RunsRepository) FinishRun(ctx context.Context, run *models.SyncRun) error {
	if run == nil || run.ID == uuid.Nil {
		return ErrInvalidRun
	}
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}

	var errMsg sql.NullString
	if run.ErrorMessage != "" {
		errMsg = sql.NullString{String: run.ErrorMessage, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs SET
			finished_at = ?, status = ?, contacts = ?, patrons = ?,
			creates = ?, updates = ?, skipped = ?, failures = ?, error_message = ?
		WHERE id = ?
	`, finished.UTC(), run.Status, run.Contacts, run.Patrons,
		run.Creates, run.Updates, run.Skipped, run.Failures, errMsg, run.ID.String())
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun retrieves one run by ID.
func (r *RunsRepository) GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, dry_run, contacts, patrons,
			creates, updates, skipped, failures, error_message
		FROM sync_runs
		WHERE id = ?
	`, id.String())

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunsRepository) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, dry_run, contacts, patrons,
			creates, updates, skipped, failures, error_message
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListLogEntries returns the log of one run in write order. With failedOnly
// set, only failed writes are returned.
func (r *RunsRepository) ListLogEntries(ctx context.Context, runID uuid.UUID, failedOnly bool) ([]models.SyncLogEntry, error) {
	query := `
		SELECT id, run_id, username, action, succeeded, error, logged_at
		FROM sync_log
		WHERE run_id = ?
	`
	if failedOnly {
		query += " AND succeeded = 0"
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var entry models.SyncLogEntry
		var runIDStr string
		var errMsg sql.NullString
		if err := rows.Scan(&entry.ID, &runIDStr, &entry.Username, &entry.Action,
			&entry.Succeeded, &errMsg, &entry.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		if entry.RunID, err = uuid.Parse(runIDStr); err != nil {
			return nil, fmt.Errorf("failed to parse run id: %w", err)
		}
		entry.Error = errMsg.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// newID returns a time-sortable log entry ID.
func (r *RunsRepository) newID(t time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), r.entropy).String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.SyncRun, error) {
	var run models.SyncRun
	var id string
	var finishedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&id, &run.StartedAt, &finishedAt, &run.Status, &run.DryRun,
		&run.Contacts, &run.Patrons, &run.Creates, &run.Updates, &run.Skipped,
		&run.Failures, &errMsg)
	if err != nil {
		return nil, err
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse run id: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	run.ErrorMessage = errMsg.String
	return &run, nil
}
