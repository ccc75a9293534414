package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"markbot/internal/delayed"
	"markbot/internal/schedule"
	"markbot/internal/transport"
	logx "markbot/pkg/logx"
)

const fireTimeLayout = "02.01.2006 15:04:05"

var helpText = Joined(
	B("Commands"),
	"/status - current schedule state",
	"/next - when the next mark goes out",
	"/toggle - enable or disable the daily mark",
	"/message [text] - show or replace the mark text",
	"/deferday [1-31|clear] - postpone the next mark to a day of month",
	"/settime HH:MM[:SS] - one-shot override of today's fire time",
	"/reshuffle - pick a fresh random fire time",
	"",
	Hf("/delay %s | %s - queue a delayed message", Esc("<time>"), Esc("<text>")),
	"/delaylist - list queued messages",
	Hf("/delaytext %s %s - replace a queued message's text", Esc("<id>"), Esc("<text>")),
	Hf("/delaytime %s %s - reschedule a queued message", Esc("<id>"), Esc("<time>")),
	Hf("/delaydel %s - drop a queued message", Esc("<id>")),
	Hf("/detach %s %s - drop attachment n from a queued message", Esc("<id>"), Esc("<n>")),
	Hf("send a file or photo with caption %s to attach it", Esc("<id>")),
	"",
	"/history [n] - recent delivery outcomes",
	"",
	"Time formats: HH:MM, DD.MM HH:MM, DD.MM.YYYY HH:MM (seconds optional).",
)

func (c *Control) handleHelp(tc tele.Context) error {
	return c.reply(tc, helpText)
}

func (c *Control) handleStatus(tc tele.Context) error {
	st := c.sched.State()
	mode := "disabled"
	if st.Enabled() {
		mode = "enabled"
	}
	lines := []H{
		Hf("Daily mark: %s", B(mode)),
		Hf("Window: %s - %s", c.window.Start.String(), c.window.End.String()),
		Hf("Next send: %s", c.sched.NextSendInfo()),
		Hf("Text: %s", Code(st.Message())),
	}
	if d := st.DeferredDay(); d != 0 {
		lines = append(lines, Hf("Deferred to day %d of the month", d))
	}
	lines = append(lines, Hf("Queued delayed messages: %d", len(c.store.List())))
	return c.reply(tc, Joined(lines...))
}

func (c *Control) handleNext(tc tele.Context) error {
	return c.reply(tc, Esc(c.sched.NextSendInfo()))
}

func (c *Control) handleToggle(tc tele.Context) error {
	st := c.sched.State()
	st.SetEnabled(!st.Enabled())
	if st.Enabled() {
		c.log.Info("daily mark enabled via control")
		return c.reply(tc, Hf("Daily mark enabled.\nNext send: %s", c.sched.NextSendInfo()))
	}
	c.log.Info("daily mark disabled via control")
	return c.reply(tc, "Daily mark disabled.")
}

func (c *Control) handleMessage(tc tele.Context) error {
	st := c.sched.State()
	text := strings.TrimSpace(tc.Message().Payload)
	if text == "" {
		return c.reply(tc, Hf("Current text:\n%s", Code(st.Message())))
	}
	st.SetMessage(text)
	c.log.Info("mark text updated via control")
	return c.reply(tc, "Text updated.")
}

func (c *Control) handleDeferDay(tc tele.Context) error {
	st := c.sched.State()
	arg := strings.TrimSpace(tc.Message().Payload)
	switch {
	case arg == "":
		if d := st.DeferredDay(); d != 0 {
			return c.reply(tc, Hf("Next mark is deferred to day %d of the month.", d))
		}
		return c.reply(tc, "No deferral set. Use /deferday 1-31 or /deferday clear.")
	case arg == "clear":
		st.ClearDeferredDay()
		return c.reply(tc, "Deferral cleared.")
	default:
		day, err := strconv.Atoi(arg)
		if err != nil {
			return c.reply(tc, "Expected a day of month (1-31) or clear.")
		}
		if err := st.SetDeferredDay(day); err != nil {
			return c.reply(tc, Esc(err.Error()))
		}
		return c.reply(tc, Hf("Next mark deferred to day %d of the month.", day))
	}
}

func (c *Control) handleSetTime(tc tele.Context) error {
	arg := strings.TrimSpace(tc.Message().Payload)
	if arg == "" {
		return c.reply(tc, "Usage: /settime HH:MM[:SS]")
	}
	clock, err := schedule.ParseClock(arg)
	if err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	if err := c.sched.State().SetNextFireOnce(clock, c.window); err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	c.log.Info("fire time overridden via control", logx.String("time", clock.String()))
	return c.reply(tc, Hf("Fire time set to %s for the next send.", clock.String()))
}

func (c *Control) handleReshuffle(tc tele.Context) error {
	now := schedule.ClockOf(c.now())
	picked := c.sched.State().Regenerate(now, c.window, c.sched.Picker())
	c.log.Info("fire time reshuffled via control", logx.String("time", picked.String()))
	return c.reply(tc, Hf("New fire time: %s\nNext send: %s", picked.String(), c.sched.NextSendInfo()))
}

// handleDelayCreate parses "/delay <time> | <text>". The pipe separates
// the fire time from the message body so times with spaces work.
func (c *Control) handleDelayCreate(tc tele.Context) error {
	payload := strings.TrimSpace(tc.Message().Payload)
	when, text, ok := strings.Cut(payload, "|")
	when = strings.TrimSpace(when)
	text = strings.TrimSpace(text)
	if !ok || when == "" || text == "" {
		return c.reply(tc, Hf("Usage: /delay %s | %s", Esc("<time>"), Esc("<text>")))
	}
	fireAt, err := delayed.ParseFireTime(when, c.now())
	if err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	m, err := c.store.Create(text, fireAt, nil)
	if err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	return c.reply(tc, Hf("Queued #%d for %s.", m.ID, m.FireAt.Format(fireTimeLayout)))
}

func (c *Control) handleDelayList(tc tele.Context) error {
	msgs := c.store.List()
	if len(msgs) == 0 {
		return c.reply(tc, "No delayed messages queued.")
	}
	lines := []H{B("Queued messages")}
	for _, m := range msgs {
		line := Hf("#%d %s: %s", m.ID, m.FireAt.Format(fireTimeLayout), Code(truncate(m.Text, 80)))
		if n := len(m.Attachments); n > 0 {
			line += Hf(" [%d attachment(s)]", n)
		}
		lines = append(lines, line)
	}
	return c.reply(tc, Joined(lines...))
}

func (c *Control) handleDelayText(tc tele.Context) error {
	id, rest, err := splitID(tc.Message().Payload)
	if err != nil || rest == "" {
		return c.reply(tc, Hf("Usage: /delaytext %s %s", Esc("<id>"), Esc("<text>")))
	}
	if err := c.store.EditText(id, rest); err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	return c.reply(tc, Hf("Text of #%d updated.", id))
}

func (c *Control) handleDelayTime(tc tele.Context) error {
	id, rest, err := splitID(tc.Message().Payload)
	if err != nil || rest == "" {
		return c.reply(tc, Hf("Usage: /delaytime %s %s", Esc("<id>"), Esc("<time>")))
	}
	fireAt, err := delayed.ParseFireTime(rest, c.now())
	if err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	if err := c.store.EditFireAt(id, fireAt); err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	return c.reply(tc, Hf("#%d rescheduled for %s.", id, fireAt.Format(fireTimeLayout)))
}

func (c *Control) handleDelayDelete(tc tele.Context) error {
	id, _, err := splitID(tc.Message().Payload)
	if err != nil {
		return c.reply(tc, Hf("Usage: /delaydel %s", Esc("<id>")))
	}
	if err := c.store.Delete(id); err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	return c.reply(tc, Hf("#%d deleted.", id))
}

func (c *Control) handleDetach(tc tele.Context) error {
	id, rest, err := splitID(tc.Message().Payload)
	if err != nil || rest == "" {
		return c.reply(tc, Hf("Usage: /detach %s %s", Esc("<id>"), Esc("<n>")))
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 1 {
		return c.reply(tc, "Attachment numbers start at 1.")
	}
	if err := c.store.RemoveAttachment(id, idx-1); err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	return c.reply(tc, Hf("Attachment %d removed from #%d.", idx, id))
}

// handleDocument ingests a document whose caption is a queued message
// id. The file is downloaded into the store's attachments directory
// under the store's naming convention before it is recorded.
func (c *Control) handleDocument(tc tele.Context) error {
	doc := tc.Message().Document
	if doc == nil {
		return nil
	}
	return c.ingestFile(tc, &doc.File, doc.FileName, doc.FileSize, delayed.IsImageName(doc.FileName))
}

func (c *Control) handlePhoto(tc tele.Context) error {
	photo := tc.Message().Photo
	if photo == nil {
		return nil
	}
	return c.ingestFile(tc, &photo.File, "photo.jpg", photo.FileSize, true)
}

func (c *Control) ingestFile(tc tele.Context, file *tele.File, name string, size int64, isImage bool) error {
	caption := strings.TrimSpace(tc.Message().Caption)
	if caption == "" {
		return c.reply(tc, "Send the file with a queued message id as the caption to attach it.")
	}
	id, err := strconv.Atoi(caption)
	if err != nil {
		return c.reply(tc, "The caption must be a queued message id.")
	}
	if _, ok := c.store.Get(id); !ok {
		return c.reply(tc, Hf("No queued message #%d.", id))
	}
	if size > delayed.MaxAttachmentSize {
		return c.reply(tc, Hf("File is too large (%d bytes, limit %d).", size, delayed.MaxAttachmentSize))
	}

	stored := delayed.StoreAttachmentName(id, name)
	path := filepath.Join(c.store.AttachmentsDir(), stored)
	if err := c.bot.Download(file, path); err != nil {
		c.log.Error("attachment download failed", logx.Int("message_id", id), logx.Err(err))
		return c.reply(tc, "Download failed, attachment not added.")
	}
	att := transport.Attachment{
		FilePath:     path,
		OriginalName: name,
		SizeBytes:    size,
		IsImage:      isImage,
	}
	if err := c.store.AddAttachments(id, []transport.Attachment{att}); err != nil {
		_ = os.Remove(path)
		return c.reply(tc, Esc(err.Error()))
	}
	return c.reply(tc, Hf("Attached %s to #%d.", name, id))
}

func (c *Control) handleHistory(tc tele.Context) error {
	if c.history == nil {
		return c.reply(tc, "Send history is not configured.")
	}
	limit := 10
	if arg := strings.TrimSpace(tc.Message().Payload); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return c.reply(tc, "Usage: /history [n]")
		}
		limit = n
	}
	records, err := c.history.RecentSends(context.Background(), limit)
	if err != nil {
		return c.reply(tc, Esc(err.Error()))
	}
	if len(records) == 0 {
		return c.reply(tc, "No sends recorded yet.")
	}
	lines := []H{B("Recent sends")}
	for _, r := range records {
		status := "ok"
		if !r.OK {
			status = "failed"
		}
		line := Hf("%s %s %s", r.At.In(c.loc).Format(fireTimeLayout), r.Kind, status)
		if r.Detail != "" {
			line += Hf(" (%s)", truncate(r.Detail, 60))
		}
		lines = append(lines, line)
	}
	return c.reply(tc, Joined(lines...))
}

func splitID(payload string) (int, string, error) {
	payload = strings.TrimSpace(payload)
	first, rest, _ := strings.Cut(payload, " ")
	id, err := strconv.Atoi(first)
	if err != nil {
		return 0, "", fmt.Errorf("parse message id: %w", err)
	}
	return id, strings.TrimSpace(rest), nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
