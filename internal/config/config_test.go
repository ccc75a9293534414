package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `telegram:
  token: "123:abc"
  owner_user_id: 100
  mark_chat_id: -200
  delayed_chat_id: -300
  poll_timeout: "15s"
logging:
  level: debug
  console: true
schedule:
  timezone: Europe/Moscow
  window_start: "10:30"
  window_end: "12:00"
  message: "here"
delayed:
  data_dir: /var/lib/markbot
storage:
  path: /var/lib/markbot/history.db
  busy_timeout: "5s"
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("Token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.MarkChatID != -200 || cfg.Telegram.DelayedChatID != -300 {
		t.Fatalf("chat ids = %d/%d", cfg.Telegram.MarkChatID, cfg.Telegram.DelayedChatID)
	}
	if cfg.Schedule.WindowStart != "10:30" || cfg.Schedule.WindowEnd != "12:00" {
		t.Fatalf("window = %q..%q", cfg.Schedule.WindowStart, cfg.Schedule.WindowEnd)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the loaded config")
	}
}

func TestLoadValidJSON(t *testing.T) {
	t.Parallel()
	body := `{
  "telegram": {"token": "t", "owner_user_id": 1, "mark_chat_id": 2, "delayed_chat_id": 3},
  "schedule": {"timezone": "UTC", "window_start": "10:30", "window_end": "12:00", "message": "m"},
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
  "delayed": {"data_dir": "/tmp/markbot"}
}`
	m := NewManager(writeConfig(t, "config.json", body))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	body := strings.Replace(validYAML, "storage:", "storge_typo: {}\nstorage:", 1)
	m := NewManager(writeConfig(t, "config.yaml", body))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	body := `{"telegram": {"token": "t", "owner_user_id": 1, "mark_chat_id": 2, "delayed_chat_id": 3},
  "schedule": {"timezone": "UTC", "window_start": "10:30", "window_end": "12:00"},
  "delayed": {"data_dir": "/tmp"}}{"extra": 1}`
	m := NewManager(writeConfig(t, "config.json", body))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	t.Parallel()
	drop := func(line string) string {
		out := make([]string, 0, 16)
		for _, l := range strings.Split(validYAML, "\n") {
			if strings.Contains(l, line) {
				continue
			}
			out = append(out, l)
		}
		return strings.Join(out, "\n")
	}
	tests := []struct {
		name string
		body string
	}{
		{name: "missing token", body: drop("token:")},
		{name: "missing owner", body: drop("owner_user_id:")},
		{name: "missing mark chat", body: drop("mark_chat_id:")},
		{name: "missing delayed chat", body: drop("delayed_chat_id:")},
		{name: "missing timezone", body: drop("timezone:")},
		{name: "missing window", body: drop("window_start:")},
		{name: "missing data dir", body: drop("data_dir:")},
		{name: "bad duration", body: strings.Replace(validYAML, `"15s"`, `"soon"`, 1)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(writeConfig(t, "config.yaml", tt.body))
			if _, err := m.Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("ParseDurationField = %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if d, err := ParseDurationOrDefault("x", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "3s", 7*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("explicit value = %v, %v", d, err)
	}
}

func TestWatchReload(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	reloaded := make(chan *Config, 1)
	m.OnReload(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a beat to arm before the first write.
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is ignored and the last good config kept.
	if err := os.WriteFile(path, []byte("telegram: {token: \"\"}"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)
	if m.Get().Telegram.Token != "123:abc" {
		t.Fatal("invalid edit replaced the active config")
	}

	updated := strings.Replace(validYAML, "level: debug", "level: warn", 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloaded:
		if cfg.Logging.Level != "warn" {
			t.Fatalf("reloaded level = %q, want warn", cfg.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload hook was not invoked")
	}
	if m.Get().Logging.Level != "warn" {
		t.Fatal("Get must reflect the reloaded config")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}
