// Package runner drives one catch-up batch: it works out which dates are
// owed a briefing, processes them oldest first, and records the ones that
// were fully delivered.
package runner

import (
	"context"
	"fmt"
	"time"

	"briefbot/internal/ledger"
	"briefbot/internal/pipeline"
	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

// Processor is the per-date workflow. *pipeline.Pipeline satisfies it.
type Processor interface {
	ProcessDate(ctx context.Context, d plan.Date) pipeline.Result
}

type Config struct {
	// LookbackDays bounds the backfill window when the ledger is empty.
	LookbackDays int

	// PauseBetweenDates spaces consecutive briefings so a long backfill does
	// not flood recipients.
	PauseBetweenDates time.Duration
}

// Report aggregates one batch. Failed counts dates that errored or panicked;
// those stay unmarked and are retried on the next run.
type Report struct {
	Planned   int
	Delivered int
	Skipped   int
	Failed    int
	Results   []pipeline.Result
}

type Runner struct {
	cfg   Config
	store ledger.Store
	proc  Processor
	log   logx.Logger
}

func New(cfg Config, store ledger.Store, proc Processor, log logx.Logger) *Runner {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = plan.DefaultLookbackDays
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{cfg: cfg, store: store, proc: proc, log: log}
}

// LookbackDays reports the effective backfill bound after defaulting.
func (r *Runner) LookbackDays() int { return r.cfg.LookbackDays }

// Run processes every pending date up to and including today, oldest first.
// One bad date never aborts the batch; its failure is reported and the date
// remains pending. Context cancellation stops the batch between dates.
func (r *Runner) Run(ctx context.Context, today plan.Date) Report {
	last, hasLast := r.store.LastRunDate(ctx)
	pending := plan.Pending(last, hasLast, today, r.cfg.LookbackDays)

	rep := Report{Planned: len(pending)}
	if len(pending) == 0 {
		r.log.Info("nothing pending", logx.String("today", today.String()))
		return rep
	}
	r.log.Info("batch start",
		logx.Int("pending", len(pending)),
		logx.String("from", pending[0].String()),
		logx.String("to", pending[len(pending)-1].String()))

	for i, d := range pending {
		if ctx.Err() != nil {
			r.log.Warn("batch cancelled", logx.Int("remaining", len(pending)-i))
			break
		}
		if r.store.HasRunFor(ctx, d) {
			rep.Skipped++
			continue
		}

		res := r.processSafe(ctx, d)
		rep.Results = append(rep.Results, res)

		switch {
		case res.Delivered:
			rep.Delivered++
			if err := r.store.MarkRun(ctx, d); err != nil {
				// The briefing went out; losing the mark only risks a
				// duplicate next run.
				r.log.Error("ledger mark failed", logx.String("date", d.String()), logx.Err(err))
			}
		case res.Skipped:
			rep.Skipped++
		default:
			rep.Failed++
		}

		if i < len(pending)-1 && r.cfg.PauseBetweenDates > 0 {
			if !sleepCtx(ctx, r.cfg.PauseBetweenDates) {
				break
			}
		}
	}

	r.log.Info("batch done",
		logx.Int("planned", rep.Planned), logx.Int("delivered", rep.Delivered),
		logx.Int("skipped", rep.Skipped), logx.Int("failed", rep.Failed))
	return rep
}

// processSafe converts a panic inside the workflow into a failed result for
// that date alone.
func (r *Runner) processSafe(ctx context.Context, d plan.Date) (res pipeline.Result) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error("date processing panicked",
				logx.String("date", d.String()), logx.Any("panic", v))
			res = pipeline.Result{Date: d, Err: fmt.Errorf("panic: %v", v)}
		}
	}()
	return r.proc.ProcessDate(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
