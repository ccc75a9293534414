package schedule

import (
	"context"
	"fmt"
	"time"

	"markbot/internal/transport"
	logx "markbot/pkg/logx"
)

// errCooldown is how long the loop pauses after an unexpected failure
// before starting a fresh iteration.
const errCooldown = 5 * time.Minute

// Recorder receives the outcome of every fire attempt. Implementations
// must be best-effort; recording failures never block a send.
type Recorder interface {
	RecordSend(ctx context.Context, kind string, at time.Time, ok bool, detail string)
}

type Config struct {
	Window   Window
	Location *time.Location
	Target   transport.ChatTarget
}

// Scheduler drives the recurring mark. One long-running Run loop per
// process; all decisions are re-derived from State on every wake.
type Scheduler struct {
	cfg      Config
	state    *State
	picker   *Picker
	sender   transport.Sender
	notifier transport.Notifier
	recorder Recorder
	log      logx.Logger

	// now is injectable for tests.
	now func() time.Time
}

func New(cfg Config, state *State, picker *Picker, sender transport.Sender, notifier transport.Notifier, recorder Recorder, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		cfg:      cfg,
		state:    state,
		picker:   picker,
		sender:   sender,
		notifier: notifier,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

func (s *Scheduler) State() *State { return s.state }

// Picker exposes the time picker so the control surface can ask for a
// reshuffle with the same randomness the loop uses.
func (s *Scheduler) Picker() *Picker { return s.picker }

// Run executes the scheduler loop until ctx is canceled. Any other
// failure inside an iteration is contained: logged, followed by a fixed
// cooldown, then the loop restarts from scratch.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("mark scheduler started",
		logx.String("window_start", s.cfg.Window.Start.String()),
		logx.String("window_end", s.cfg.Window.End.String()),
		logx.String("tz", s.cfg.Location.String()))

	for {
		err := s.iterate(ctx)
		if ctx.Err() != nil {
			s.log.Info("mark scheduler stopped")
			return ctx.Err()
		}
		if err != nil {
			s.log.Error("scheduler iteration failed, cooling down",
				logx.Err(err), logx.Duration("cooldown", errCooldown))
			if serr := s.sleepUntil(ctx, s.now().Add(errCooldown)); serr != nil {
				s.log.Info("mark scheduler stopped")
				return serr
			}
		}
	}
}

// iterate runs one pass of the state machine. Panics are converted to
// errors so a bad iteration triggers the cooldown instead of killing
// the process.
func (s *Scheduler) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	now := s.now().In(s.cfg.Location)
	s.state.ResetDay()

	// Deferral wins over everything: wait until the target day's window
	// start, then restart the iteration with fresh dates.
	if day := s.state.TakeDeferredDay(); day != 0 {
		target := DeferralTarget(now, day, s.cfg.Window.Start)
		s.log.Info("deferring until day of month",
			logx.Int("day", day), logx.Time("until", target))
		return s.sleepUntil(ctx, target)
	}

	if !IsWeekday(now) {
		s.log.Info("weekend, no automatic mark today",
			logx.String("day", now.Weekday().String()))
		return s.sleepUntil(ctx, s.nextWindowStart(now))
	}

	if s.cfg.Window.Contains(ClockOf(now)) {
		if err := s.runWindow(ctx, now); err != nil {
			return err
		}
	}

	return s.sleepUntil(ctx, s.nextWindowStart(s.now().In(s.cfg.Location)))
}

// runWindow handles the in-window wait-then-fire sequence for today.
func (s *Scheduler) runWindow(ctx context.Context, now time.Time) error {
	target := s.state.NextFire().On(now)
	if !target.After(now) {
		// A long stall pushed us past the committed pick. Skip today and
		// choose a fresh time so the next day does not inherit this one.
		next := s.state.RollOver(s.cfg.Window, s.picker)
		s.log.Info("planned fire time already elapsed, skipping today",
			logx.Time("planned", target), logx.String("next", next.String()))
		return nil
	}

	s.log.Info("next mark scheduled", logx.Time("at", target))
	s.state.CommitPending()

	// Re-read both the clock and the fire time on every wake: the
	// operator may have overridden the time mid-wait, and system sleep
	// can make a single timer fire early or late. A state change
	// interrupts the sleep via the wake channel.
	for {
		now = s.now().In(s.cfg.Location)
		target = s.state.NextFire().On(now)
		if !target.After(now) {
			break
		}
		if err := s.sleepUntilOrWake(ctx, target); err != nil {
			return err
		}
	}

	firedAt := s.now().In(s.cfg.Location)
	if s.state.Enabled() {
		text := s.state.Message()
		err := s.sender.SendText(ctx, s.cfg.Target, text)
		if err != nil {
			s.log.Error("mark send failed", logx.Err(err))
			s.report(ctx, fmt.Sprintf("Mark send failed at %s: %v",
				firedAt.Format("15:04:05"), err))
			s.record(ctx, firedAt, false, err.Error())
		} else {
			s.log.Info("mark sent", logx.Time("at", firedAt))
			s.record(ctx, firedAt, true, "")
		}
	} else {
		s.log.Info("mark sending disabled, window passes unsent")
	}

	next := s.state.FinishFire(s.cfg.Window, s.picker)
	s.log.Info("next fire time regenerated", logx.String("at", next.String()))
	return nil
}

// nextWindowStart returns the window-start instant of the next weekday
// strictly after now's date, scanning forward at most 7 days.
func (s *Scheduler) nextWindowStart(now time.Time) time.Time {
	day := now
	for i := 0; i < 7; i++ {
		day = day.AddDate(0, 0, 1)
		if IsWeekday(day) {
			return s.cfg.Window.Start.On(day)
		}
	}
	return s.cfg.Window.Start.On(day)
}

// DeferralTarget computes the absolute window-start instant for the
// requested day of month. A day that has already passed this month,
// does not exist in it, or equals today with the window start already
// behind us rolls forward; months lacking the day (for example 31 in
// February) are skipped.
func DeferralTarget(now time.Time, day int, windowStart Clock) time.Time {
	year, month := now.Year(), now.Month()
	for i := 0; i < 12; i++ {
		if day <= daysIn(year, month) {
			t := time.Date(year, month, day, windowStart.Hour, windowStart.Minute, windowStart.Second, 0, now.Location())
			if t.After(now) {
				return t
			}
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	// Unreachable for any valid day 1..31, but return something sane.
	return windowStart.On(now.AddDate(0, 1, 0))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextSendInfo renders the "next scheduled fire" answer for the control
// surface.
func (s *Scheduler) NextSendInfo() string {
	if d := s.state.DeferredDay(); d != 0 {
		return fmt.Sprintf("deferred until day %d of the month", d)
	}
	if !s.state.Enabled() {
		return "automatic sending is disabled"
	}

	now := s.now().In(s.cfg.Location)
	fire := s.state.NextFire()
	day := now
	// Today only counts if the pick is still ahead and nothing fired yet.
	if s.state.SentToday() || !IsWeekday(now) || !fire.On(now).After(now) {
		day = day.AddDate(0, 0, 1)
		for !IsWeekday(day) {
			day = day.AddDate(0, 0, 1)
		}
	}
	return fire.On(day).Format("02.01.2006 at 15:04:05")
}

// sleepUntil blocks until t or context cancellation. Returns nil when
// t was reached, the context error otherwise.
func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(s.now())
	if d <= 0 {
		return nil
	}
	s.log.Debug("sleeping", logx.Duration("for", d), logx.Time("until", t))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sleepUntilOrWake is sleepUntil with a third wake source: a fire-time
// mutation. Returning nil on wake sends the caller back to re-read the
// target.
func (s *Scheduler) sleepUntilOrWake(ctx context.Context, t time.Time) error {
	d := t.Sub(s.now())
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-s.state.Wake():
		return nil
	}
}

func (s *Scheduler) report(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, text)
	}
}

func (s *Scheduler) record(ctx context.Context, at time.Time, ok bool, detail string) {
	if s.recorder != nil {
		s.recorder.RecordSend(ctx, "mark", at, ok, detail)
	}
}
