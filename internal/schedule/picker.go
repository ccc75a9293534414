package schedule

import "math/rand"

// GuardSeconds pads the lower bound of a pick so the chosen instant has
// not already elapsed by the time the loop re-checks the clock.
const GuardSeconds = 3

// Picker chooses a uniformly random instant inside a window at
// one-second granularity. The randomness source is injectable so tests
// can pin the choice.
type Picker struct {
	// intn returns a value in [0, n). Must not be nil.
	intn func(n int) int
}

func NewPicker() *Picker {
	return &Picker{intn: rand.Intn}
}

// NewPickerWithRand builds a Picker with a custom uniform source.
func NewPickerWithRand(intn func(n int) int) *Picker {
	return &Picker{intn: intn}
}

// Pick returns a random clock in [max(lower, w.Start)+guard, w.End].
// If the effective lower bound exceeds w.End, it returns w.End exactly:
// the range collapses rather than the call failing.
func (p *Picker) Pick(lower Clock, w Window) Clock {
	lo := lower.Seconds()
	if s := w.Start.Seconds(); s > lo {
		lo = s
	}
	lo += GuardSeconds
	hi := w.End.Seconds()
	if lo >= hi {
		return w.End
	}
	sec := lo + p.intn(hi-lo+1)
	return Clock{Hour: sec / 3600, Minute: (sec % 3600) / 60, Second: sec % 60}
}
