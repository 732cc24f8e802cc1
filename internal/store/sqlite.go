// Package store persists scheduler run records to sqlite. It is optional:
// the daemon runs fine without it, keeping only the in-memory history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"amd/internal/scheduler"
	"amd/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	task        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	err         TEXT
);
CREATE INDEX IF NOT EXISTS runs_task_started ON runs(task, started_at);
`

// RunStore is a sqlite-backed scheduler.Store.
type RunStore struct {
	db  *sql.DB
	log logx.Logger
}

func Open(path string, log logx.Logger) (*RunStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &RunStore{db: db, log: log.With(logx.String("comp", "store"))}, nil
}

func (s *RunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun appends one run record.
func (s *RunStore) RecordRun(ctx context.Context, rec scheduler.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(task, started_at, duration_ms, err) VALUES(?,?,?,?)`,
		rec.Task, rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.Duration.Milliseconds(), nullStr(rec.Error),
	)
	return err
}

// RecentRuns returns up to limit of the newest records, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]scheduler.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT task, started_at, duration_ms, err FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scheduler.RunRecord
	for rows.Next() {
		var (
			rec        scheduler.RunRecord
			startedAt  string
			durationMS int64
			errStr     sql.NullString
		)
		if err := rows.Scan(&rec.Task, &startedAt, &durationMS, &errStr); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			rec.StartedAt = ts
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Error = errStr.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
