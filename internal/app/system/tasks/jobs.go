// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/whosthat/internal/app/engine/dispatch"
	"go.uber.org/zap"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means Interval.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// TickRunner runs one dispatch pass. *dispatch.Orchestrator satisfies it.
type TickRunner interface {
	RunTick(ctx context.Context) dispatch.Report
}

// DispatchTickJob evaluates every active game once per interval. The
// interval must be at most a minute so an exact-minute schedule is never
// stepped over.
func DispatchTickJob(runner TickRunner, logger *zap.Logger, interval, timeout time.Duration) Job {
	return Job{
		Name:     "dispatch-tick",
		Interval: interval,
		Timeout:  timeout,
		Run: func(ctx context.Context) error {
			rep := runner.RunTick(ctx)
			if rep.Error != "" {
				return errors.New(rep.Error)
			}
			if rep.Rounds > 0 || rep.MessagesFailed > 0 {
				logger.Info("dispatch tick",
					zap.String("tick_id", rep.TickID),
					zap.Int("games_due", rep.GamesDue),
					zap.Int("rounds", rep.Rounds),
					zap.Int("sent", rep.MessagesSent),
					zap.Int("failed", rep.MessagesFailed))
			}
			return nil
		},
	}
}
