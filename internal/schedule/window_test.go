package schedule

import (
	"testing"
	"time"
)

func TestParseClockVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want Clock
	}{
		{name: "hhmm", raw: "10:30", want: Clock{Hour: 10, Minute: 30}},
		{name: "hhmmss", raw: "10:30:05", want: Clock{Hour: 10, Minute: 30, Second: 5}},
		{name: "midnight", raw: "00:00", want: Clock{}},
		{name: "end of day", raw: "23:59:59", want: Clock{Hour: 23, Minute: 59, Second: 59}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClock(tt.raw)
			if err != nil {
				t.Fatalf("ParseClock(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseClock(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseClockInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "25:00", "10:60", "10", "10:30:60", "aa:bb"} {
		if _, err := ParseClock(raw); err == nil {
			t.Fatalf("ParseClock(%q): expected error", raw)
		}
	}
}

func TestNewWindowOrder(t *testing.T) {
	t.Parallel()
	start := Clock{Hour: 12}
	end := Clock{Hour: 10, Minute: 30}
	if _, err := NewWindow(start, end); err == nil {
		t.Fatal("expected error for start after end")
	}
	w, err := NewWindow(end, start)
	if err != nil {
		t.Fatalf("NewWindow error: %v", err)
	}
	if !w.Contains(Clock{Hour: 10, Minute: 30}) || !w.Contains(Clock{Hour: 12}) {
		t.Fatal("window bounds must be inclusive")
	}
	if w.Contains(Clock{Hour: 10, Minute: 29, Second: 59}) {
		t.Fatal("moment before start must be outside")
	}
	if w.Contains(Clock{Hour: 12, Second: 1}) {
		t.Fatal("moment after end must be outside")
	}
}

func TestClockOn(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("MSK", 3*3600)
	day := time.Date(2026, time.March, 9, 17, 45, 12, 999, loc)
	got := Clock{Hour: 10, Minute: 30, Second: 5}.On(day)
	want := time.Date(2026, time.March, 9, 10, 30, 5, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("On = %v, want %v", got, want)
	}
}

func TestIsWeekday(t *testing.T) {
	t.Parallel()
	// 2026-03-09 is a Monday.
	monday := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if !IsWeekday(monday.AddDate(0, 0, i)) {
			t.Fatalf("day %d should be a weekday", i)
		}
	}
	if IsWeekday(monday.AddDate(0, 0, 5)) || IsWeekday(monday.AddDate(0, 0, 6)) {
		t.Fatal("weekend classified as weekday")
	}
}
