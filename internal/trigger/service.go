// Package trigger exposes the two ways a pipeline run gets started: an HTTP
// endpoint receiving opaque event payloads, and a cron/interval schedule.
package trigger

import (
	"context"
	"time"

	"github.com/SamPetering/slack-sales-notifier/internal/pipeline"
	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

// Runner is the pipeline entry point.
type Runner interface {
	Run(ctx context.Context, trigger string) (pipeline.Result, error)
}

// Scheduler fires the pipeline on a fixed schedule. Runs execute inline so a
// slow run delays (rather than overlaps) the next scheduled one; the HTTP
// trigger can still overlap it, which the dedup ledger tolerates.
type Scheduler struct {
	sched  Schedule
	runner Runner
	log    logx.Logger
}

func NewScheduler(sched Schedule, runner Runner, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{sched: sched, runner: runner, log: log}
}

// Loop blocks until ctx is done.
func (s *Scheduler) Loop(ctx context.Context) {
	for {
		next := s.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.runner.Run(ctx, "schedule"); err != nil {
			// Run errors are already logged in detail by the pipeline.
			s.log.Warn("scheduled run failed", logx.Err(err))
		}
	}
}
