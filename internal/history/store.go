package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Failure is one image that could not be processed during a run.
type Failure struct {
	Image string `json:"image"`
	Error string `json:"error"`
}

// Run is one recorded optimize run.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Removed    int       `json:"removed"`
	Failed     int       `json:"failed"`
	BytesSaved int64     `json:"bytes_saved"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a run and its failures in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("history: run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs
		(id, started_at, finished_at, total, processed, skipped, removed, failed, bytes_saved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Total, run.Processed, run.Skipped, run.Removed, run.Failed, run.BytesSaved,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, f := range run.Failures {
		if _, err := tx.ExecContext(ctx, "INSERT INTO run_failures (run_id, image, error) VALUES (?, ?, ?)", run.ID, f.Image, f.Error); err != nil {
			return fmt.Errorf("insert run failure: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with failures attached.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, finished_at, total, processed, skipped, removed, failed, bytes_saved
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	index := map[string]int{}
	for rows.Next() {
		var (
			run               Run
			started, finished string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Total, &run.Processed, &run.Skipped, &run.Removed, &run.Failed, &run.BytesSaved); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		index[run.ID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	args := make([]any, 0, len(runs))
	placeholders := make([]string, 0, len(runs))
	for _, run := range runs {
		args = append(args, run.ID)
		placeholders = append(placeholders, "?")
	}
	failRows, err := s.db.QueryContext(ctx,
		"SELECT run_id, image, error FROM run_failures WHERE run_id IN ("+strings.Join(placeholders, ",")+") ORDER BY rowid",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query run failures: %w", err)
	}
	defer failRows.Close()
	for failRows.Next() {
		var runID string
		var f Failure
		if err := failRows.Scan(&runID, &f.Image, &f.Error); err != nil {
			return nil, fmt.Errorf("scan run failure: %w", err)
		}
		if i, ok := index[runID]; ok {
			runs[i].Failures = append(runs[i].Failures, f)
		}
	}
	if err := failRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run failures: %w", err)
	}
	return runs, nil
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
