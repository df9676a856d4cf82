// Package store persists sync settings and the run log in SQLite.
// Items are never stored; they are rebuilt from provider fetches on
// every cycle.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tasksync/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Settings keys. Stored key-value so new settings never need a
// migration.
const (
	keyInterval       = "sync_interval_minutes"
	keyDirection      = "sync_direction"
	keyTaskListID     = "task_list_id"
	keyReminderListID = "reminder_list_id"
)

// Store wraps the SQLite database holding settings and sync logs.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// between the scheduler and HTTP handlers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetSettings returns the stored settings, with defaults filled in for
// any key never saved.
func (s *Store) GetSettings(ctx context.Context) (model.Settings, error) {
	settings := model.DefaultSettings()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, fmt.Errorf("scan setting: %w", err)
		}
		switch key {
		case keyInterval:
			n, err := strconv.Atoi(value)
			if err != nil {
				return settings, fmt.Errorf("stored interval %q: %w", value, err)
			}
			settings.IntervalMinutes = n
		case keyDirection:
			settings.Direction = model.Direction(value)
		case keyTaskListID:
			settings.TaskListID = value
		case keyReminderListID:
			settings.ReminderListID = value
		}
	}
	return settings, rows.Err()
}

// SaveSettings validates and stores the settings.
func (s *Store) SaveSettings(ctx context.Context, settings model.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer tx.Rollback()

	pairs := map[string]string{
		keyInterval:       strconv.Itoa(settings.IntervalMinutes),
		keyDirection:      string(settings.Direction),
		keyTaskListID:     settings.TaskListID,
		keyReminderListID: settings.ReminderListID,
	}
	for key, value := range pairs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE
			SET value = excluded.value,
			    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
			key, value)
		if err != nil {
			return fmt.Errorf("save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// HasSettings reports whether any settings have ever been saved. Used at
// startup to decide whether the scheduler was previously configured.
func (s *Store) HasSettings(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count settings: %w", err)
	}
	return n > 0, nil
}

// RecordResult inserts a sync result and fills in its assigned ID.
func (s *Store) RecordResult(ctx context.Context, r *model.Result) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_logs
			(status, direction, tasks_synced, reminders_synced, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.Status), string(r.Direction),
		r.TasksSynced, r.RemindersSynced, r.ErrorMessage,
		formatTime(r.StartedAt), formatTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("result id: %w", err)
	}
	return nil
}

// LastResult returns the most recent sync result, or nil if no cycle has
// ever run.
func (s *Store) LastResult(ctx context.Context) (*model.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, direction, tasks_synced, reminders_synced, error_message, started_at, finished_at
		FROM sync_logs ORDER BY id DESC LIMIT 1`)

	r, err := scanResult(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last result: %w", err)
	}
	return r, nil
}

// ListResults returns up to limit results, most recent first.
func (s *Store) ListResults(ctx context.Context, limit int) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, direction, tasks_synced, reminders_synced, error_message, started_at, finished_at
		FROM sync_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		r, err := scanResult(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

func scanResult(scan func(dest ...any) error) (*model.Result, error) {
	var r model.Result
	var status, direction, started, finished string
	if err := scan(&r.ID, &status, &direction, &r.TasksSynced,
		&r.RemindersSynced, &r.ErrorMessage, &started, &finished); err != nil {
		return nil, err
	}
	r.Status = model.Status(status)
	r.Direction = model.Direction(direction)

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	return &r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored timestamp %q: %w", s, err)
	}
	return t, nil
}
