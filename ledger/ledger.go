// Package ledger persists validation run history in SQLite. Each run
// records its span, the splits validated, per-split blessings and the
// alert count, giving operators a queryable trail of what was blessed
// when.
package ledger

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teranos/validus/errors"
	"github.com/teranos/validus/validator"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one recorded validation run.
type Run struct {
	ID          string
	Span        int64
	Splits      []string
	Blessings   map[string]string
	AlertCount  int
	Status      string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Blessed reports whether every validated split was blessed. A failed
// run is never blessed, and neither is one carrying a token the
// validator does not recognize.
func (r *Run) Blessed() bool {
	if r.Status != StatusSucceeded || len(r.Blessings) == 0 {
		return false
	}
	for _, token := range r.Blessings {
		b, ok := validator.ParseBlessing(token)
		if !ok || b != validator.Blessed {
			return false
		}
	}
	return true
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS validation_runs (
	id TEXT PRIMARY KEY,
	span INTEGER NOT NULL,
	splits TEXT NOT NULL,
	blessings TEXT,
	alert_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_validation_runs_span ON validation_runs(span);
CREATE INDEX IF NOT EXISTS idx_validation_runs_started_at ON validation_runs(started_at);
`

// Store handles persistence of validation runs
type Store struct {
	db *sql.DB
}

// NewStore creates a run store over an existing database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the ledger database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.IOf(err, "opening ledger database %s", path)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.IO(err, "enabling foreign keys")
	}
	store := NewStore(db)
	if err := store.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the ledger tables if they do not exist
func (s *Store) EnsureSchema() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return errors.IO(err, "creating ledger schema")
	}
	return nil
}

// Close closes the underlying database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a completed run into the ledger
func (s *Store) RecordRun(run *Run) error {
	splitsJSON, err := json.Marshal(run.Splits)
	if err != nil {
		return errors.Wrap(err, "failed to marshal splits")
	}

	var blessingsJSON sql.NullString
	if len(run.Blessings) > 0 {
		raw, err := json.Marshal(run.Blessings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal blessings")
		}
		blessingsJSON = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		INSERT INTO validation_runs (
			id, span, splits, blessings,
			alert_count, status, error,
			started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	runErr := sql.NullString{String: run.Error, Valid: run.Error != ""}

	_, err = s.db.Exec(query,
		run.ID,
		run.Span,
		string(splitsJSON),
		blessingsJSON,
		run.AlertCount,
		run.Status,
		runErr,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to record run")
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id string) (*Run, error) {
	query := `SELECT ` + runSelectColumns + ` FROM validation_runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf("run not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get run")
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first, optionally
// filtered by status
func (s *Store) ListRuns(status string, limit int) ([]*Run, error) {
	var query string
	var args []interface{}

	baseQuery := `SELECT ` + runSelectColumns + ` FROM validation_runs`
	if status != "" {
		query = baseQuery + ` WHERE status = ? ORDER BY started_at DESC LIMIT ?`
		args = []interface{}{status, limit}
	} else {
		query = baseQuery + ` ORDER BY started_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListRunsBySpan returns all runs recorded for one span, newest first
func (s *Store) ListRunsBySpan(span int64) ([]*Run, error) {
	query := `SELECT ` + runSelectColumns + `
		FROM validation_runs
		WHERE span = ?
		ORDER BY started_at DESC`

	rows, err := s.db.Query(query, span)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs by span")
	}
	defer rows.Close()

	return scanRuns(rows)
}

// LatestRunForSpan returns the most recent run for a span, or nil when
// the span has never been validated.
func (s *Store) LatestRunForSpan(span int64) (*Run, error) {
	query := `SELECT ` + runSelectColumns + `
		FROM validation_runs
		WHERE span = ?
		ORDER BY started_at DESC
		LIMIT 1`

	run, err := scanRun(s.db.QueryRow(query, span))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest run for span")
	}

	return run, nil
}

// CleanupOldRuns removes runs older than the specified duration and
// returns how many were deleted
func (s *Store) CleanupOldRuns(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.Exec(`DELETE FROM validation_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old runs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}

const runSelectColumns = `id, span, splits, blessings, alert_count, status, error, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run           Run
		splitsJSON    string
		blessingsJSON sql.NullString
		runErr        sql.NullString
		completedAt   sql.NullTime
	)
	if err := row.Scan(
		&run.ID,
		&run.Span,
		&splitsJSON,
		&blessingsJSON,
		&run.AlertCount,
		&run.Status,
		&runErr,
		&run.StartedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(splitsJSON), &run.Splits); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal splits")
	}
	if blessingsJSON.Valid {
		if err := json.Unmarshal([]byte(blessingsJSON.String), &run.Blessings); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal blessings")
		}
	}
	run.Error = runErr.String
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}

	return &run, nil
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating runs")
	}

	return runs, nil
}
