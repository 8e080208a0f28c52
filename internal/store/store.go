package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/mocktest/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the client's local storage: the active-attempt marker, the
// persisted session credentials and a few metadata values.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempt (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		test_id INTEGER NOT NULL,
		test_name TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS credentials (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveAttempt replaces the attempt marker with a.
func (s *Store) SaveAttempt(a model.Attempt) error {
	_, err := s.db.Exec(
		`INSERT INTO attempt (id, test_id, test_name, started_at, duration_seconds)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   test_id = excluded.test_id,
		   test_name = excluded.test_name,
		   started_at = excluded.started_at,
		   duration_seconds = excluded.duration_seconds`,
		a.TestID, a.TestName, a.StartedAt.UnixMilli(), int64(a.Duration/time.Second),
	)
	return err
}

// GetAttempt returns the attempt marker, or nil if none is stored.
func (s *Store) GetAttempt() (*model.Attempt, error) {
	var (
		a         model.Attempt
		startedMs int64
		durSec    int64
	)
	err := s.db.QueryRow(
		`SELECT test_id, test_name, started_at, duration_seconds FROM attempt WHERE id = 1`,
	).Scan(&a.TestID, &a.TestName, &startedMs, &durSec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if startedMs > 0 {
		a.StartedAt = time.UnixMilli(startedMs).UTC()
	}
	a.Duration = time.Duration(durSec) * time.Second
	return &a, nil
}

// ClearAttempt removes the attempt marker. Clearing an absent marker is not an error.
func (s *Store) ClearAttempt() error {
	_, err := s.db.Exec(`DELETE FROM attempt WHERE id = 1`)
	return err
}
