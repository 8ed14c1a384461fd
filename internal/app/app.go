// Package app wires configuration, the gateway, the pipeline, and the
// trigger surfaces into one process.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/SamPetering/slack-sales-notifier/internal/channels"
	"github.com/SamPetering/slack-sales-notifier/internal/config"
	"github.com/SamPetering/slack-sales-notifier/internal/eventbus"
	"github.com/SamPetering/slack-sales-notifier/internal/ledger"
	"github.com/SamPetering/slack-sales-notifier/internal/notify"
	"github.com/SamPetering/slack-sales-notifier/internal/pipeline"
	"github.com/SamPetering/slack-sales-notifier/internal/runtime/supervisor"
	"github.com/SamPetering/slack-sales-notifier/internal/slack"
	"github.com/SamPetering/slack-sales-notifier/internal/storage"
	"github.com/SamPetering/slack-sales-notifier/internal/trigger"
	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	gw    *slack.Client
	bus   eventbus.Bus
	store storage.Store
	pipe  *pipeline.Pipeline

	httpSrv  *trigger.Server
	schedule *trigger.Schedule

	sup *supervisor.Supervisor
}

// New loads the config and builds every component. Nothing starts running
// until Start.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	boot := logx.NewConsole(cfg.Logging.Level)

	timeout, _ := time.ParseDuration(cfg.Slack.Timeout)
	gw, err := slack.New(slack.Config{
		Token:      cfg.Slack.Token,
		RatePerSec: cfg.Slack.RatePerSec,
		Timeout:    timeout,
	}, boot)
	if err != nil {
		return nil, err
	}

	// The log service posts through the gateway, so it is built after it.
	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Slack: logx.SlackConfig{
			Enabled:    cfg.Logging.Slack.Enabled,
			Channel:    cfg.Logging.Slack.Channel,
			MinLevel:   cfg.Logging.Slack.MinLevel,
			RatePerSec: cfg.Logging.Slack.RatePerSec,
		},
	}, gw)
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	notifier, err := notify.Open(cfg.Notify.Driver)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	var store storage.Store
	if cfg.Storage != nil {
		busy, _ := time.ParseDuration(cfg.Storage.BusyTimeout)
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
	}

	bus := eventbus.New()
	resolver := channels.NewResolver(gw, log.With(logx.String("comp", "channels")))
	led := ledger.New(gw, cfg.Slack.LedgerScanLimit, log.With(logx.String("comp", "ledger")))
	pipe := pipeline.New(pipeline.Config{
		Mode:          cfg.Mode,
		SourceChannel: cfg.Slack.SourceChannel,
		LogChannel:    cfg.Slack.LogChannel,
		HistoryLimit:  cfg.Slack.HistoryLimit,
	}, gw, resolver, led, notifier, bus, log.With(logx.String("comp", "pipeline")))

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		gw:     gw,
		bus:    bus,
		store:  store,
		pipe:   pipe,
	}

	if cfg.Trigger.HTTP.Enabled {
		a.httpSrv = trigger.NewServer(trigger.ServerConfig{
			Addr:  cfg.Trigger.HTTP.Addr,
			Token: cfg.Trigger.HTTP.Token,
		}, pipe, log.With(logx.String("comp", "http")))
	}
	if cfg.Trigger.Schedule != "" {
		sched, err := trigger.ParseSchedule(cfg.Trigger.Schedule)
		if err != nil {
			logSvc.Close()
			return nil, fmt.Errorf("trigger.schedule: %w", err)
		}
		a.schedule = &sched
	}

	return a, nil
}

// RunOnce executes a single pipeline pass (the -once flag).
func (a *App) RunOnce(ctx context.Context) (pipeline.Result, error) {
	return a.pipe.Run(ctx, "once")
}

// Start launches the trigger surfaces, the audit writer, and the config
// watcher. It returns once everything is up.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	if a.store != nil {
		events, unsub := a.bus.Subscribe(64)
		a.sup.Go0("audit.writer", func(c context.Context) {
			defer unsub()
			a.auditWriter(c, events)
		})
	}

	a.sup.Go("config.watch", func(c context.Context) error {
		err := a.cfgMgr.Watch(c)
		if c.Err() != nil {
			return nil
		}
		return err
	})
	cfgCh := a.cfgMgr.Subscribe(4)
	a.sup.Go0("config.apply", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-cfgCh:
				if !ok {
					return
				}
				// Only logging is hot-reloadable; channel names, tokens, and
				// trigger wiring need a restart.
				a.logSvc.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
					Slack: logx.SlackConfig{
						Enabled:    cfg.Logging.Slack.Enabled,
						Channel:    cfg.Logging.Slack.Channel,
						MinLevel:   cfg.Logging.Slack.MinLevel,
						RatePerSec: cfg.Logging.Slack.RatePerSec,
					},
				})
				a.log.Info("logging config applied")
			}
		}
	})

	if a.httpSrv != nil {
		if err := a.httpSrv.Start(a.sup.Context()); err != nil {
			return fmt.Errorf("http trigger: %w", err)
		}
	}
	if a.schedule != nil {
		sched := trigger.NewScheduler(*a.schedule, a.pipe, a.log.With(logx.String("comp", "schedule")))
		a.sup.Go0("schedule.loop", sched.Loop)
	}

	// Under systemd Type=notify this reports readiness; elsewhere it's a no-op.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	a.log.Info("notifier started")
	return nil
}

func (a *App) auditWriter(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			res, ok := ev.Data.(pipeline.Result)
			if !ok || ev.Type != pipeline.EventRunCompleted {
				continue
			}
			rec := storage.RunRecord{
				At:        ev.Time,
				Trigger:   res.Trigger,
				Outcome:   string(res.Outcome),
				Key:       res.Key,
				Err:       res.Err,
				RecordErr: res.RecordErr,
				TookMS:    res.Took.Milliseconds(),
			}
			if err := a.store.AppendRun(ctx, rec); err != nil {
				a.log.Warn("audit write failed", logx.Err(err))
			}
		}
	}
}

// Stop shuts everything down, waiting briefly for in-flight goroutines.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	var err error
	if a.sup != nil {
		err = a.sup.Stop(5 * time.Second)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logSvc.Close()
	return err
}
