// Package control is the chat-based operator interface: owner-only
// telebot command handlers that drive the recurring scheduler and the
// delayed-message store.
package control

import (
	"time"

	tele "gopkg.in/telebot.v4"

	"markbot/internal/delayed"
	"markbot/internal/schedule"
	"markbot/internal/storage"
	logx "markbot/pkg/logx"
)

type Control struct {
	bot     *tele.Bot
	ownerID int64

	sched   *schedule.Scheduler
	window  schedule.Window
	loc     *time.Location
	store   *delayed.Store
	history *storage.History

	log logx.Logger
}

func New(bot *tele.Bot, ownerID int64, sched *schedule.Scheduler, window schedule.Window, loc *time.Location, store *delayed.Store, history *storage.History, log logx.Logger) *Control {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Control{
		bot:     bot,
		ownerID: ownerID,
		sched:   sched,
		window:  window,
		loc:     loc,
		store:   store,
		history: history,
		log:     log,
	}
}

// ownerOnly rejects updates from anyone but the configured owner.
func (c *Control) ownerOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(tc tele.Context) error {
		sender := tc.Sender()
		if sender == nil || sender.ID != c.ownerID {
			if sender != nil {
				c.log.Warn("unauthorized control access", logx.Int64("user_id", sender.ID))
			}
			return nil
		}
		return next(tc)
	}
}

// Register installs all command handlers on the bot.
func (c *Control) Register() {
	c.bot.Use(c.ownerOnly)

	c.bot.Handle("/start", c.handleHelp)
	c.bot.Handle("/help", c.handleHelp)
	c.bot.Handle("/status", c.handleStatus)
	c.bot.Handle("/next", c.handleNext)

	c.bot.Handle("/toggle", c.handleToggle)
	c.bot.Handle("/message", c.handleMessage)
	c.bot.Handle("/deferday", c.handleDeferDay)
	c.bot.Handle("/settime", c.handleSetTime)
	c.bot.Handle("/reshuffle", c.handleReshuffle)

	c.bot.Handle("/delay", c.handleDelayCreate)
	c.bot.Handle("/delaylist", c.handleDelayList)
	c.bot.Handle("/delaytext", c.handleDelayText)
	c.bot.Handle("/delaytime", c.handleDelayTime)
	c.bot.Handle("/delaydel", c.handleDelayDelete)
	c.bot.Handle("/detach", c.handleDetach)
	c.bot.Handle(tele.OnDocument, c.handleDocument)
	c.bot.Handle(tele.OnPhoto, c.handlePhoto)

	c.bot.Handle("/history", c.handleHistory)
}

func (c *Control) reply(tc tele.Context, text H) error {
	return tc.Send(text.String(), &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true})
}

// now returns the current time in the scheduler's zone; every
// comparison in the control surface goes through it so clock arithmetic
// stays in one canonical location.
func (c *Control) now() time.Time { return time.Now().In(c.loc) }
