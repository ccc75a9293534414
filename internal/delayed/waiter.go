package delayed

import (
	"context"
	"fmt"
	"time"

	logx "markbot/pkg/logx"
)

// startWaiterLocked launches the single-shot wait task for m and
// registers its cancellation handle. Caller holds s.mu.
func (s *Store) startWaiterLocked(m Message) {
	if s.runCtx == nil {
		// Not started yet; Start() will launch waiters for loaded records.
		s.runCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(s.runCtx)
	s.tasks[m.ID] = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wait(ctx, m.ID, m.FireAt)
	}()
}

// wait sleeps until fireAt (clamped to zero when already due), sends
// the message, reports the outcome to the control surface, and removes
// the record and its files regardless of delivery result.
// Cancellation from a time edit or an explicit delete exits without
// cleanup: the canceling operation owns it.
func (s *Store) wait(ctx context.Context, id int, fireAt time.Time) {
	if d := time.Until(fireAt); d > 0 {
		s.log.Info("delayed message armed",
			logx.Int("id", id), logx.Duration("in", d))
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.log.Info("delayed message wait canceled", logx.Int("id", id))
			return
		case <-timer.C:
		}
	}

	// Re-read the record: the text or attachments may have been edited
	// while we slept. Gone means deleted, so there is nothing to do.
	m, ok := s.Get(id)
	if !ok {
		return
	}

	var err error
	if len(m.Attachments) > 0 {
		err = s.sender.SendWithAttachments(ctx, s.cfg.Target, m.Text, m.Attachments)
	} else {
		err = s.sender.SendText(ctx, s.cfg.Target, m.Text)
	}

	when := m.FireAt.In(s.cfg.Location).Format("02.01.2006 15:04:05")
	if err != nil {
		if ctx.Err() != nil {
			s.log.Info("delayed message send canceled", logx.Int("id", id))
			return
		}
		s.log.Error("delayed message send failed", logx.Int("id", id), logx.Err(err))
		s.notify(fmt.Sprintf("Delayed message #%d failed to send (%s): %v", id, when, err))
		s.record(m, false, err.Error())
	} else {
		s.log.Info("delayed message sent", logx.Int("id", id))
		s.notify(fmt.Sprintf("Delayed message #%d sent (%s).", id, when))
		s.record(m, true, "")
	}

	s.removeAfterFire(id)
}

// removeAfterFire drops the record, its files and the task entry once
// the waiter has finished, whatever the outcome.
func (s *Store) removeAfterFire(id int) {
	s.mu.Lock()
	m, ok := s.msgs[id]
	if ok {
		delete(s.msgs, id)
		s.removeFilesLocked(m)
	}
	delete(s.tasks, id)
	s.mu.Unlock()

	if ok {
		s.persist()
	}
}

func (s *Store) notify(text string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.notifier.Notify(ctx, text)
}

func (s *Store) record(m Message, ok bool, detail string) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.recorder.RecordSend(ctx, "delayed", m.FireAt, ok, detail)
}
