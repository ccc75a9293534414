// Package schedule implements the recurring-mark scheduling core: the
// daily send window, the random fire-time picker, the mutable scheduler
// state, and the long-running scheduler loop.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time-of-day at one-second granularity.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return Clock{}, fmt.Errorf("invalid second in %q", s)
		}
	}
	return Clock{Hour: h, Minute: m, Second: sec}, nil
}

// ClockOf extracts the time-of-day of t.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (c Clock) Seconds() int { return c.Hour*3600 + c.Minute*60 + c.Second }

func (c Clock) Before(o Clock) bool { return c.Seconds() < o.Seconds() }
func (c Clock) After(o Clock) bool  { return c.Seconds() > o.Seconds() }

// On anchors the clock to the calendar day of t, in t's location.
func (c Clock) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, c.Second, 0, t.Location())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Window is the daily time-of-day range eligible for the recurring
// send. Immutable after construction.
type Window struct {
	Start Clock
	End   Clock
}

func NewWindow(start, end Clock) (Window, error) {
	if start.After(end) {
		return Window{}, fmt.Errorf("window start %s is after end %s", start, end)
	}
	return Window{Start: start, End: end}, nil
}

func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	return NewWindow(s, e)
}

// Contains reports whether c falls inside [Start, End].
func (w Window) Contains(c Clock) bool {
	return !c.Before(w.Start) && !c.After(w.End)
}

// IsWeekday reports whether t is Monday through Friday.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
