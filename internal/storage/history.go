// Package storage persists the send history: one row per fire attempt,
// recurring or delayed, with its outcome. Recording is best-effort and
// never blocks a send.
package storage

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

	logx "markbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

type SendRecord struct {
	ID     int64
	Kind   string // "mark" or "delayed"
	At     time.Time
	OK     bool
	Detail string
}

const schema = `
CREATE TABLE IF NOT EXISTS send_history (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	kind   TEXT    NOT NULL,
	at     TEXT    NOT NULL,
	ok     INTEGER NOT NULL,
	detail TEXT
);
CREATE INDEX IF NOT EXISTS idx_send_history_at ON send_history(at);
`

type History struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the history database. It returns (nil, nil) when the
// path is empty: a nil *History is a valid, disabled recorder.
func Open(cfg Config, log logx.Logger) (*History, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &History{db: db, log: log}, nil
}

func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// RecordSend appends one outcome row. Safe on a nil receiver; errors
// are logged and swallowed.
func (h *History) RecordSend(ctx context.Context, kind string, at time.Time, ok bool, detail string) {
	if h == nil || h.db == nil {
		return
	}
	okInt := 0
	if ok {
		okInt = 1
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO send_history(kind, at, ok, detail) VALUES(?,?,?,?)`,
		kind, at.Format(time.RFC3339), okInt, nullStr(detail),
	)
	if err != nil {
		h.log.Warn("send history write failed", logx.Err(err))
	}
}

// RecentSends returns the most recent rows, newest first.
func (h *History) RecentSends(ctx context.Context, limit int) ([]SendRecord, error) {
	if h == nil || h.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, kind, at, ok, COALESCE(detail, '') FROM send_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SendRecord
	for rows.Next() {
		var (
			r     SendRecord
			atRaw string
			okInt int
		)
		if err := rows.Scan(&r.ID, &r.Kind, &atRaw, &okInt, &r.Detail); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, atRaw); err == nil {
			r.At = t
		}
		r.OK = okInt == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
