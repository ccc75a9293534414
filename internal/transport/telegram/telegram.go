// Package telegram implements transport.Sender on top of telebot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"markbot/internal/transport"
	logx "markbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec limits outgoing messages. Telegram allows ~30 msg/s
	// globally but far less per chat; default is 3.
	RatePerSec int
	// RetryMax is the number of extra attempts for transient failures.
	RetryMax int
	// RetryBackoff is the fixed delay between attempts.
	RetryBackoff time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	limiter *rate.Limiter

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telebot init: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}, nil
}

// Bot exposes the underlying telebot instance for handler registration
// by the control surface.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Start begins long polling. It returns once polling has been launched;
// the poll loop itself runs until Stop or context cancellation.
func (a *Adapter) Start(ctx context.Context) {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	a.runMu.Unlock()

	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()
	go func() {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
}

func (a *Adapter) Stop() {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()
	if wasRunning {
		a.bot.Stop()
	}
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string) error {
	chat := &tele.Chat{ID: to.ChatID}
	for _, chunk := range transport.SplitText(text, transport.MaxTextLen) {
		if err := a.sendRetry(ctx, func() error {
			_, err := a.bot.Send(chat, chunk)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) SendWithAttachments(ctx context.Context, to transport.ChatTarget, text string, atts []transport.Attachment) error {
	if len(atts) == 0 {
		return a.SendText(ctx, to, text)
	}
	if strings.TrimSpace(text) != "" {
		if err := a.SendText(ctx, to, text); err != nil {
			return err
		}
	}

	chat := &tele.Chat{ID: to.ChatID}
	for _, group := range transport.BatchAttachments(atts, transport.MaxAttachmentsPerMessage) {
		album := make(tele.Album, 0, len(group))
		for _, att := range group {
			if att.IsImage {
				album = append(album, &tele.Photo{File: tele.FromDisk(att.FilePath)})
			} else {
				album = append(album, &tele.Document{
					File:     tele.FromDisk(att.FilePath),
					FileName: att.OriginalName,
				})
			}
		}
		if err := a.sendRetry(ctx, func() error {
			_, err := a.bot.SendAlbum(chat, album)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// sendRetry applies rate limiting, classifies the platform error, and
// retries only transient failures with a fixed backoff.
func (a *Adapter) sendRetry(ctx context.Context, send func() error) error {
	var last error
	for attempt := 0; attempt <= a.cfg.RetryMax; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		err := send()
		if err == nil {
			return nil
		}
		last = classify(err)
		if !transport.Retriable(last) {
			return last
		}
		if attempt == a.cfg.RetryMax {
			break
		}
		a.log.Debug("send retry scheduled",
			logx.Int("attempt", attempt+2),
			logx.Duration("delay", a.cfg.RetryBackoff),
			logx.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.RetryBackoff):
		}
	}
	return last
}

// classify maps telebot errors onto the transport failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return fmt.Errorf("%w: retry after %ds: %v", transport.ErrRateLimited, flood.RetryAfter, err)
	}
	switch {
	case errors.Is(err, tele.ErrChatNotFound):
		return fmt.Errorf("%w: %v", transport.ErrNotFound, err)
	case errors.Is(err, tele.ErrBlockedByUser), errors.Is(err, tele.ErrKickedFromGroup):
		return fmt.Errorf("%w: %v", transport.ErrPermissionDenied, err)
	case errors.Is(err, tele.ErrTooLarge):
		return fmt.Errorf("%w: %v", transport.ErrTooLarge, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "forbidden") || strings.Contains(msg, "not enough rights") {
		return fmt.Errorf("%w: %v", transport.ErrPermissionDenied, err)
	}
	if strings.Contains(msg, "not found") {
		return fmt.Errorf("%w: %v", transport.ErrNotFound, err)
	}
	// Anything else (timeouts, connection resets, 5xx) is worth a retry.
	return fmt.Errorf("%w: %v", transport.ErrTransient, err)
}
