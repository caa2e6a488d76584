// Package history is an optional supplemental transfer-history log, backed
// by modernc.org/sqlite. It records the outcome of each file transfer for
// operator visibility; the sync engine's correctness never depends on it.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is the terminal disposition of one file within a session.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeUpToDate  Outcome = "up_to_date"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeTrashed   Outcome = "trashed"
)

// Record is one row of the transfer history log.
type Record struct {
	ID           int64
	SessionID    string
	RelativePath string
	Outcome      Outcome
	FailureKind  string
	BytesApplied int64
	FinishedAt   time.Time
}

// Store wraps a sqlite-backed transfer log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfer_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		outcome TEXT NOT NULL,
		failure_kind TEXT,
		bytes_applied INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_session ON transfer_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_history_path ON transfer_history(relative_path);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Append records one file's terminal outcome for a session.
func (s *Store) Append(sessionID, relativePath string, outcome Outcome, failureKind string, bytesApplied int64) error {
	_, err := s.db.Exec(
		`INSERT INTO transfer_history (session_id, relative_path, outcome, failure_kind, bytes_applied, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, relativePath, string(outcome), failureKind, bytesApplied, time.Now().Unix(),
	)
	return err
}

// RecentForPath returns the most recent history entries for relativePath,
// newest first, limited to limit rows.
func (s *Store) RecentForPath(relativePath string, limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, relative_path, outcome, failure_kind, bytes_applied, finished_at
		 FROM transfer_history WHERE relative_path = ? ORDER BY finished_at DESC LIMIT ?`,
		relativePath, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SessionSummary returns every entry recorded for sessionID.
func (s *Store) SessionSummary(sessionID string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, relative_path, outcome, failure_kind, bytes_applied, finished_at
		 FROM transfer_history WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var failureKind sql.NullString
		var finishedUnix int64
		var outcome string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.RelativePath, &outcome, &failureKind, &r.BytesApplied, &finishedUnix); err != nil {
			return nil, err
		}
		r.Outcome = Outcome(outcome)
		r.FailureKind = failureKind.String
		r.FinishedAt = time.Unix(finishedUnix, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}
