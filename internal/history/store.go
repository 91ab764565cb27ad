// Package history keeps a local record of deploy attempts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one deploy attempt, successful or not.
type Record struct {
	ID          int64
	Environment string
	Region      string
	Cluster     string
	Service     string
	Repository  string
	ImageRef    string
	Revision    int32
	Outcome     string // succeeded | failed
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Store persists deploy records in a local SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the history database location. It respects
// XDG_STATE_HOME, falling back to ~/.local/state/slipway/history.db.
func DefaultPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "state", "slipway", "history.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "slipway", "history.db")
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS deploys (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	environment TEXT NOT NULL,
	region      TEXT NOT NULL,
	cluster     TEXT NOT NULL,
	service     TEXT NOT NULL,
	repository  TEXT NOT NULL,
	image_ref   TEXT NOT NULL,
	revision    INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure deploys table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one deploy attempt.
func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO deploys (
	environment, region, cluster, service, repository,
	image_ref, revision, outcome, error, started_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Environment,
		rec.Region,
		rec.Cluster,
		rec.Service,
		rec.Repository,
		rec.ImageRef,
		rec.Revision,
		rec.Outcome,
		rec.Error,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert deploy record: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, environment, region, cluster, service, repository,
       image_ref, revision, outcome, error, started_at, finished_at
FROM deploys
ORDER BY id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query deploy records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var started, finished string
		if err := rows.Scan(
			&rec.ID, &rec.Environment, &rec.Region, &rec.Cluster, &rec.Service,
			&rec.Repository, &rec.ImageRef, &rec.Revision, &rec.Outcome,
			&rec.Error, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan deploy record: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deploy records: %w", err)
	}
	return out, nil
}
