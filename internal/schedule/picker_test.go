package schedule

import "testing"

func mustWindow(t *testing.T, start, end string) Window {
	t.Helper()
	w, err := ParseWindow(start, end)
	if err != nil {
		t.Fatalf("ParseWindow(%q, %q): %v", start, end, err)
	}
	return w
}

func TestPickGuardedRange(t *testing.T) {
	t.Parallel()
	w := mustWindow(t, "10:30", "12:00")
	lower := Clock{Hour: 10, Minute: 30, Second: 5}

	low := NewPickerWithRand(func(n int) int { return 0 }).Pick(lower, w)
	if (low != Clock{Hour: 10, Minute: 30, Second: 8}) {
		t.Fatalf("lowest pick = %v, want 10:30:08", low)
	}

	high := NewPickerWithRand(func(n int) int { return n - 1 }).Pick(lower, w)
	if (high != Clock{Hour: 12}) {
		t.Fatalf("highest pick = %v, want 12:00:00", high)
	}
}

func TestPickLowerBeforeWindow(t *testing.T) {
	t.Parallel()
	w := mustWindow(t, "10:30", "12:00")
	got := NewPickerWithRand(func(n int) int { return 0 }).Pick(Clock{Hour: 9}, w)
	want := Clock{Hour: 10, Minute: 30, Second: GuardSeconds}
	if got != want {
		t.Fatalf("Pick = %v, want %v", got, want)
	}
}

func TestPickDegenerateCollapsesToEnd(t *testing.T) {
	t.Parallel()
	w := mustWindow(t, "10:30", "12:00")
	for _, lower := range []Clock{
		{Hour: 11, Minute: 59, Second: 58},
		{Hour: 12},
		{Hour: 15},
	} {
		got := NewPicker().Pick(lower, w)
		if (got != Clock{Hour: 12}) {
			t.Fatalf("Pick(lower=%v) = %v, want window end", lower, got)
		}
	}
}

func TestPickStaysInRange(t *testing.T) {
	t.Parallel()
	w := mustWindow(t, "10:30", "12:00")
	p := NewPicker()
	for i := 0; i < 1000; i++ {
		got := p.Pick(Clock{Hour: 10}, w)
		if got.Before(Clock{Hour: 10, Minute: 30, Second: GuardSeconds}) || got.After(w.End) {
			t.Fatalf("pick %v outside guarded window", got)
		}
	}
}
