package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "markbot/pkg/logx"
)

func TestOpenEmptyPathDisables(t *testing.T) {
	t.Parallel()
	h, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h != nil {
		t.Fatal("empty path must yield a nil disabled history")
	}

	// A nil history accepts writes and reports disabled on reads.
	h.RecordSend(context.Background(), "mark", time.Now(), true, "")
	if _, err := h.RecentSends(context.Background(), 5); !errors.Is(err, ErrDisabled) {
		t.Fatalf("RecentSends on nil = %v, want ErrDisabled", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close on nil = %v", err)
	}
}

func TestRecordAndReadBack(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(Config{Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	ctx := context.Background()
	base := time.Date(2026, time.March, 9, 10, 45, 0, 0, time.UTC)
	h.RecordSend(ctx, "mark", base, true, "")
	h.RecordSend(ctx, "delayed", base.Add(time.Hour), false, "blocked by user")
	h.RecordSend(ctx, "mark", base.Add(2*time.Hour), true, "")

	got, err := h.RecentSends(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSends: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].Kind != "mark" || !got[0].At.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Kind != "delayed" || got[1].OK || got[1].Detail != "blocked by user" {
		t.Fatalf("second = %+v", got[1])
	}

	all, err := h.RecentSends(ctx, 0)
	if err != nil {
		t.Fatalf("RecentSends default limit: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[2].Detail != "" {
		t.Fatalf("empty detail round-trip = %q", all[2].Detail)
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")
	h1, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h1.RecordSend(context.Background(), "mark", time.Now().UTC(), true, "")
	if err := h1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h2, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h2.Close()
	got, err := h2.RecentSends(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentSends: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}
