// internal/app/system/workers/runner.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/whosthat/internal/app/system/tasks"
	"go.uber.org/zap"
)

// Runner is a background worker that runs one job on an interval. Runs never
// overlap within a process; a run that outlasts the interval delays the next.
type Runner struct {
	job    tasks.Job
	log    *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	// cancel aborts an in-flight run on Stop.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner creates a worker for job.
func NewRunner(job tasks.Job, logger *zap.Logger) *Runner {
	if job.Timeout <= 0 {
		job.Timeout = job.Interval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		job:    job,
		log:    logger.With(zap.String("job", job.Name)),
		stopCh: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the background loop. The first run happens after one interval.
func (w *Runner) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("worker started", zap.Duration("interval", w.job.Interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Runner) Stop() {
	close(w.stopCh)
	w.cancel()
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Runner) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.once()
		}
	}
}

func (w *Runner) once() {
	ctx, cancel := context.WithTimeout(w.ctx, w.job.Timeout)
	defer cancel()

	start := time.Now()
	if err := w.job.Run(ctx); err != nil {
		w.log.Error("job failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	w.log.Debug("job done", zap.Duration("took", time.Since(start)))
}
