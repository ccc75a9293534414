package schedule

import (
	"fmt"
	"sync"
)

// State holds the mutable scheduling configuration. The scheduler loop
// re-reads it on every wake, so control-surface mutations made while a
// send is pending take effect without restarting the loop.
//
// All invariants (day range, window bounds) are enforced here, at the
// mutation boundary.
type State struct {
	mu sync.Mutex

	enabled bool
	message string

	nextFire Clock
	// lockedFloor is the lower bound used when re-randomizing a pending
	// fire time. It prevents a reshuffle from picking a moment earlier
	// than the one the loop has already committed to waiting for.
	lockedFloor    Clock
	hasLockedFloor bool
	// overrideOnce marks nextFire as a manual one-shot choice; normal
	// random regeneration resumes after it is consumed.
	overrideOnce bool

	deferredDay int // 1..31, 0 means none
	sentToday   bool

	// wake receives a token whenever the fire time changes, so a loop
	// sleeping toward the old target can re-read it immediately.
	wake chan struct{}
}

// NewState builds the initial state with a first fire time already
// picked for today (or the window start, whichever is later). A start
// after the window has closed schedules for a future day, so the pick
// floor falls back to the window start; picking from the current clock
// would collapse the range to the window end.
func NewState(message string, now Clock, w Window, p *Picker) *State {
	if now.After(w.End) {
		now = w.Start
	}
	return &State{
		enabled:  true,
		message:  message,
		nextFire: p.Pick(now, w),
		wake:     make(chan struct{}, 1),
	}
}

// Wake signals that the pending fire time changed.
func (s *State) Wake() <-chan struct{} { return s.wake }

func (s *State) notifyWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *State) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *State) SetEnabled(v bool) {
	s.mu.Lock()
	s.enabled = v
	s.mu.Unlock()
}

func (s *State) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

func (s *State) SetMessage(text string) {
	s.mu.Lock()
	s.message = text
	s.mu.Unlock()
}

func (s *State) NextFire() Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFire
}

// SetNextFireOnce overwrites the pending fire time with a manual
// choice, consumed exactly once by the next send check.
func (s *State) SetNextFireOnce(c Clock, w Window) error {
	if !w.Contains(c) {
		return fmt.Errorf("time %s is outside the send window [%s, %s]", c, w.Start, w.End)
	}
	s.mu.Lock()
	s.nextFire = c
	s.overrideOnce = true
	s.mu.Unlock()
	s.notifyWake()
	return nil
}

// Regenerate re-picks the fire time. The lower bound is the locked
// floor when one is committed, otherwise now; a live reshuffle can
// therefore never move the pick before the committed wait target.
// A manual one-shot override is not disturbed.
func (s *State) Regenerate(now Clock, w Window, p *Picker) Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrideOnce {
		return s.nextFire
	}
	lower := now
	if s.hasLockedFloor && s.lockedFloor.After(lower) {
		lower = s.lockedFloor
	}
	s.nextFire = p.Pick(lower, w)
	s.notifyWake()
	return s.nextFire
}

// CommitPending records that the loop has started waiting for the
// current fire time.
func (s *State) CommitPending() {
	s.mu.Lock()
	s.lockedFloor = s.nextFire
	s.hasLockedFloor = true
	s.mu.Unlock()
}

// FinishFire consumes any one-shot override, releases the locked floor,
// marks today as handled, and picks tomorrow's fire time with the
// window start as the floor. Doing the pick here lets a "next send"
// query immediately reflect tomorrow's time.
func (s *State) FinishFire(w Window, p *Picker) Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideOnce = false
	s.hasLockedFloor = false
	s.sentToday = true
	s.nextFire = p.Pick(w.Start, w)
	return s.nextFire
}

// RollOver abandons an elapsed pick without marking the day as sent:
// any override and wait commitment are released and a fresh random time
// is chosen with the window start as the floor, so the next day gets
// its own pick instead of reusing the stale one.
func (s *State) RollOver(w Window, p *Picker) Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideOnce = false
	s.hasLockedFloor = false
	s.nextFire = p.Pick(w.Start, w)
	return s.nextFire
}

func (s *State) SentToday() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentToday
}

// ResetDay clears the sent-today flag and any stale wait commitment at
// the start of a calendar iteration.
func (s *State) ResetDay() {
	s.mu.Lock()
	s.sentToday = false
	s.hasLockedFloor = false
	s.mu.Unlock()
}

func (s *State) DeferredDay() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deferredDay
}

func (s *State) SetDeferredDay(day int) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("day %d is out of range 1..31", day)
	}
	s.mu.Lock()
	s.deferredDay = day
	s.mu.Unlock()
	return nil
}

func (s *State) ClearDeferredDay() {
	s.mu.Lock()
	s.deferredDay = 0
	s.mu.Unlock()
}

// TakeDeferredDay returns the deferred day and clears it (one-shot
// defer). Returns 0 when no deferral is set.
func (s *State) TakeDeferredDay() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.deferredDay
	s.deferredDay = 0
	return d
}
