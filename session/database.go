// Package session keeps a catalog of capture sessions and replay runs in a
// local SQLite database and exports captured flight logs as spreadsheets.
package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS capture_session (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	directory TEXT NOT NULL,
	armed INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMP NOT NULL,
	stopped_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS replay_run (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file TEXT NOT NULL,
	mode TEXT NOT NULL,
	destination TEXT NOT NULL,
	points INTEGER NOT NULL,
	started_at TIMESTAMP NOT NULL,
	stopped_at TIMESTAMP,
	completed INTEGER NOT NULL DEFAULT 0
);
`

// CaptureSession is one completed recording session.
type CaptureSession struct {
	ID        int64     `json:"id"`
	Directory string    `json:"directory"`
	Armed     bool      `json:"armed"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
}

// ReplayRun is one replay started against a destination.
type ReplayRun struct {
	ID          int64      `json:"id"`
	File        string     `json:"file"`
	Mode        string     `json:"mode"`
	Destination string     `json:"destination"`
	Points      int        `json:"points"`
	StartedAt   time.Time  `json:"started_at"`
	StoppedAt   *time.Time `json:"stopped_at"`
	Completed   bool       `json:"completed"`
}

// Store wraps the catalog database.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the catalog database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("session: failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("session: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AddCapture records one completed capture session.
func (s *Store) AddCapture(directory string, armed bool, startedAt, stoppedAt time.Time) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO capture_session (directory, armed, started_at, stopped_at) VALUES (?, ?, ?, ?)",
		directory, armed, startedAt, stoppedAt)
	if err != nil {
		return 0, fmt.Errorf("session: failed to insert capture session: %w", err)
	}
	return res.LastInsertId()
}

// StartReplay records the start of a replay run and returns its id.
func (s *Store) StartReplay(file, mode, destination string, points int, startedAt time.Time) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO replay_run (file, mode, destination, points, started_at) VALUES (?, ?, ?, ?, ?)",
		file, mode, destination, points, startedAt)
	if err != nil {
		return 0, fmt.Errorf("session: failed to insert replay run: %w", err)
	}
	return res.LastInsertId()
}

// FinishReplay marks a replay run as stopped; completed reports whether the
// whole log was sent rather than the run being cancelled.
func (s *Store) FinishReplay(id int64, completed bool, stoppedAt time.Time) error {
	_, err := s.db.Exec(
		"UPDATE replay_run SET stopped_at = ?, completed = ? WHERE id = ?",
		stoppedAt, completed, id)
	if err != nil {
		return fmt.Errorf("session: failed to update replay run: %w", err)
	}
	return nil
}

// Captures returns all capture sessions, newest first.
func (s *Store) Captures() ([]CaptureSession, error) {
	rows, err := s.db.Query(
		"SELECT id, directory, armed, started_at, stopped_at FROM capture_session ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("session: failed to query capture sessions: %w", err)
	}
	defer rows.Close()

	var sessions []CaptureSession
	for rows.Next() {
		var cs CaptureSession
		if err := rows.Scan(&cs.ID, &cs.Directory, &cs.Armed, &cs.StartedAt, &cs.StoppedAt); err != nil {
			return nil, fmt.Errorf("session: failed to scan capture session: %w", err)
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}

// Replays returns all replay runs, newest first.
func (s *Store) Replays() ([]ReplayRun, error) {
	rows, err := s.db.Query(
		"SELECT id, file, mode, destination, points, started_at, stopped_at, completed FROM replay_run ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("session: failed to query replay runs: %w", err)
	}
	defer rows.Close()

	var runs []ReplayRun
	for rows.Next() {
		var rr ReplayRun
		if err := rows.Scan(&rr.ID, &rr.File, &rr.Mode, &rr.Destination, &rr.Points,
			&rr.StartedAt, &rr.StoppedAt, &rr.Completed); err != nil {
			return nil, fmt.Errorf("session: failed to scan replay run: %w", err)
		}
		runs = append(runs, rr)
	}
	return runs, rows.Err()
}

// CaptureDirectory resolves a capture session id to its directory.
func (s *Store) CaptureDirectory(id int64) (string, error) {
	var dir string
	err := s.db.QueryRow("SELECT directory FROM capture_session WHERE id = ?", id).Scan(&dir)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("session: capture session %d not found", id)
	}
	if err != nil {
		return "", fmt.Errorf("session: failed to look up capture session %d: %w", id, err)
	}
	return dir, nil
}
