// Package app wires the briefbot services together from one config file.
package app

import (
	"context"
	"fmt"
	"time"

	"briefbot/internal/ai"
	"briefbot/internal/config"
	"briefbot/internal/deliver"
	"briefbot/internal/fetch"
	"briefbot/internal/ledger"
	"briefbot/internal/pipeline"
	"briefbot/internal/plan"
	"briefbot/internal/runner"
	"briefbot/internal/schedule"
	logx "briefbot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logs   *logx.Service
	log    logx.Logger

	store ledger.Store
	pipe  *pipeline.Pipeline
	run   *runner.Runner
	sched *schedule.Service
	loc   *time.Location
}

// New loads and validates the config, then builds the full service graph.
// Any failure here aborts before network or ledger work starts.
func New(cfgPath string) (*App, error) {
	cfgMgr := config.NewManager(cfgPath, logx.NewConsole("info"))
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	logs, log := logx.New(cfg.Logging.Logx())
	log = log.With(logx.String("svc", "briefbot"))

	a := &App{cfgMgr: cfgMgr, logs: logs, log: log}
	if err := a.build(cfg); err != nil {
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	fetchTimeout, err := config.ParseDurationOrDefault(
		"newsletter.timeout", cfg.Newsletter.Timeout, 30*time.Second)
	if err != nil {
		return err
	}
	busyTimeout, err := config.ParseDurationField("ledger.busy_timeout", cfg.Ledger.BusyTimeout)
	if err != nil {
		return err
	}
	pause, err := config.ParseDurationOrDefault(
		"schedule.pause_between_dates", cfg.Schedule.PauseBetweenDates, 2*time.Second)
	if err != nil {
		return err
	}

	store, err := ledger.Open(ledger.Config{
		Driver:      cfg.Ledger.Driver,
		Path:        cfg.Ledger.Path,
		BusyTimeout: busyTimeout,
	}, a.log.With(logx.String("comp", "ledger")))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	a.store = store

	fetcher := fetch.New(fetch.Config{
		BaseURL: cfg.Newsletter.BaseURL,
		Timeout: fetchTimeout,
	}, a.log.With(logx.String("comp", "fetch")))

	summarizer, err := ai.New(ai.Config{
		Model:       cfg.Summarizer.Model,
		MaxTokens:   cfg.Summarizer.MaxTokens,
		Temperature: cfg.Summarizer.Temperature,
		MaxArticles: cfg.Summarizer.MaxArticles,
	}, cfg.Summarizer.APIKey, a.log.With(logx.String("comp", "ai")))
	if err != nil {
		return fmt.Errorf("summarizer: %w", err)
	}

	var (
		sender     pipeline.Sender
		recipients []int64
	)
	if cfg.Telegram.IsEnabled() {
		tg, err := deliver.NewTelegram(deliver.Config{
			Token:       cfg.Telegram.Token,
			PartsPerSec: cfg.Telegram.PartsPerSec,
			RetryMax:    cfg.Telegram.RetryMax,
		}, a.log.With(logx.String("comp", "deliver")))
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		sender = tg
		recipients = cfg.Telegram.Recipients
	} else {
		// With delivery off the workflow still runs end to end and marks
		// dates, so re-enabling later does not replay the whole backlog.
		a.log.Warn("delivery disabled; briefings will be produced but not sent")
		sender = nopSender{}
	}

	a.pipe = pipeline.New(pipeline.Config{Recipients: recipients},
		fetcher, summarizer, sender, a.log.With(logx.String("comp", "pipeline")))

	a.run = runner.New(runner.Config{
		LookbackDays:      cfg.Schedule.LookbackDays,
		PauseBetweenDates: pause,
	}, store, a.pipe, a.log.With(logx.String("comp", "runner")))

	a.loc = time.UTC
	if tz := cfg.Schedule.Timezone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
		a.loc = loc
	}

	sched, err := schedule.New(schedule.Config{
		Cron:     cfg.Schedule.Cron,
		Timezone: cfg.Schedule.Timezone,
	}, func(ctx context.Context) { a.RunOnce(ctx) },
		a.log.With(logx.String("comp", "schedule")))
	if err != nil {
		return err
	}
	a.sched = sched
	return nil
}

func (a *App) Log() logx.Logger { return a.log }

// Today is the current civil date in the configured timezone. The schedule's
// timezone decides when "today" rolls over, so the planner must agree with it.
func (a *App) Today() plan.Date { return plan.DateOf(time.Now().In(a.loc)) }

// Pending lists the dates a run would process right now.
func (a *App) Pending(ctx context.Context) []plan.Date {
	last, hasLast := a.store.LastRunDate(ctx)
	return plan.Pending(last, hasLast, a.Today(), a.run.LookbackDays())
}

// RunOnce executes one catch-up batch and returns its report.
func (a *App) RunOnce(ctx context.Context) runner.Report {
	return a.run.Run(ctx, a.Today())
}

// RunDate processes a single date, marking the ledger on full delivery.
// It ignores whether the date was already marked.
func (a *App) RunDate(ctx context.Context, d plan.Date) pipeline.Result {
	res := a.pipe.ProcessDate(ctx, d)
	if res.Delivered {
		if err := a.store.MarkRun(ctx, d); err != nil {
			a.log.Error("ledger mark failed", logx.String("date", d.String()), logx.Err(err))
		}
	}
	return res
}

// StartDaemon blocks until ctx is cancelled, running batches on the cron
// schedule and reloading the config file on change.
func (a *App) StartDaemon(ctx context.Context) error {
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	go a.watchConfig(ctx)

	notifyReady(a.log)
	<-ctx.Done()

	notifyStopping(a.log)
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.sched.Stop(stopCtx)
	return nil
}

// watchConfig applies logging changes from config reloads while the daemon
// runs. Structural changes (ledger driver, recipients, schedule) need a
// restart; the reload path only touches what is safe to swap live.
func (a *App) watchConfig(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)

	go func() {
		if err := a.cfgMgr.Watch(ctx); err != nil {
			a.log.Warn("config watch ended", logx.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(cfg.Logging.Logx())
			a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
		}
	}
}

func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

type nopSender struct{}

func (nopSender) SendParts(ctx context.Context, chatID int64, parts []string) error { return nil }
