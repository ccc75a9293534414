// Package app assembles the bot: configuration, logging, storage, the
// Telegram adapter, the recurring scheduler, the delayed-message store
// and the control surface, all run under one supervisor.
package app

import (
	"context"
	"fmt"
	"time"

	"markbot/internal/config"
	"markbot/internal/control"
	"markbot/internal/delayed"
	"markbot/internal/runtime/supervisor"
	"markbot/internal/schedule"
	"markbot/internal/storage"
	"markbot/internal/transport"
	"markbot/internal/transport/telegram"
	logx "markbot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	history *storage.History
	adapter *telegram.Adapter
	sched   *schedule.Scheduler
	store   *delayed.Store
	janitor *delayed.Janitor
	control *control.Control
}

// New loads the config file and builds every component. Nothing is
// started; call Run.
func New(configPath string) (*App, error) {
	cfgMgr := config.NewManager(configPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, rootLog := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgMgr.SetLogger(rootLog.With(logx.String("component", "config")))

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	window, err := schedule.ParseWindow(cfg.Schedule.WindowStart, cfg.Schedule.WindowEnd)
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("parse schedule window: %w", err)
	}

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	history, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, rootLog.With(logx.String("component", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open send history: %w", err)
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, rootLog.With(logx.String("component", "telegram")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	ownerID := cfg.Telegram.OwnerUserID
	notifier := transport.NotifierFunc(func(ctx context.Context, text string) {
		if err := adapter.SendText(ctx, transport.ChatTarget{ChatID: ownerID}, text); err != nil {
			rootLog.Warn("owner notification failed", logx.Err(err))
		}
	})

	picker := schedule.NewPicker()
	state := schedule.NewState(cfg.Schedule.Message, schedule.ClockOf(time.Now().In(loc)), window, picker)
	sched := schedule.New(schedule.Config{
		Window:   window,
		Location: loc,
		Target:   transport.ChatTarget{ChatID: cfg.Telegram.MarkChatID},
	}, state, picker, adapter, notifier, history, rootLog.With(logx.String("component", "schedule")))

	store := delayed.NewStore(delayed.Config{
		DataDir:  cfg.Delayed.DataDir,
		Target:   transport.ChatTarget{ChatID: cfg.Telegram.DelayedChatID},
		Location: loc,
	}, adapter, notifier, history, rootLog.With(logx.String("component", "delayed")))
	janitor := delayed.NewJanitor(store, rootLog.With(logx.String("component", "janitor")))

	ctl := control.New(adapter.Bot(), ownerID, sched, window, loc, store, history,
		rootLog.With(logx.String("component", "control")))
	ctl.Register()

	// Only logging settings take effect on reload; everything else
	// requires a restart.
	cfgMgr.OnReload(func(c *config.Config) {
		logSvc.Apply(logx.Config{
			Level:   c.Logging.Level,
			Console: c.Logging.Console,
			File: logx.FileConfig{
				Enabled: c.Logging.File.Enabled,
				Path:    c.Logging.File.Path,
			},
		})
		rootLog.Info("logging config reloaded", logx.String("level", c.Logging.Level))
	})

	return &App{
		cfgMgr:  cfgMgr,
		logSvc:  logSvc,
		log:     rootLog,
		history: history,
		adapter: adapter,
		sched:   sched,
		store:   store,
		janitor: janitor,
		control: ctl,
	}, nil
}

// Run starts everything and blocks until ctx is canceled, then shuts
// the components down in reverse order.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("component", "supervisor"))))

	if err := a.store.Start(sup.Context()); err != nil {
		return fmt.Errorf("start delayed store: %w", err)
	}
	if err := a.janitor.Start(); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	a.adapter.Start(sup.Context())

	sup.GoRestart("scheduler", time.Second, time.Minute, a.sched.Run)
	sup.Go("config-watch", a.cfgMgr.Watch)

	a.log.Info("markbot started")
	<-sup.Context().Done()
	a.log.Info("shutting down")

	a.adapter.Stop()
	a.janitor.Stop()
	a.store.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sup.Stop(waitCtx); err != nil {
		a.log.Warn("shutdown incomplete", logx.Err(err))
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("close send history", logx.Err(err))
		}
	}
	return a.logSvc.Close()
}
