// Package audit records every classifier call in a local SQLite database so
// verdicts can be traced back to the exact prompt and raw response.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Entry is one row of agent_logs.
type Entry struct {
	ID        int64
	RunID     string
	Timestamp time.Time
	Tier      string
	Model     string
	Kind      string // "content" or "json"
	Prompt    string
	Response  string
	Error     string
	Latency   time.Duration
}

// Store wraps the audit database.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory if needed, opens the database and runs
// migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("audit: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("audit: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_logs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT    NOT NULL,
			ts          TEXT    NOT NULL,
			tier        TEXT    NOT NULL,
			model       TEXT    NOT NULL,
			kind        TEXT    NOT NULL,
			prompt      TEXT    NOT NULL,
			response    TEXT    NOT NULL DEFAULT '',
			error       TEXT    NOT NULL DEFAULT '',
			latency_ms  INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_agent_logs_run ON agent_logs(run_id);
	`)
	return err
}

// Append inserts e and returns its row id.
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_logs (run_id, ts, tier, model, kind, prompt, response, error, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Tier, e.Model, e.Kind,
		e.Prompt, e.Response, e.Error, e.Latency.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("audit: insert: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the newest entries for runID, newest first. An empty runID
// matches every run.
func (s *Store) Recent(ctx context.Context, runID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, ts, tier, model, kind, prompt, response, error, latency_ms
		 FROM agent_logs
		 WHERE ? = '' OR run_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		runID, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			ts      string
			latency int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &ts, &e.Tier, &e.Model, &e.Kind, &e.Prompt, &e.Response, &e.Error, &latency); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.Latency = time.Duration(latency) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}
