// internal/app/system/deferred/deferred.go

// Package deferred runs side effects after the caller has moved on.
//
// A Queue has a fixed number of workers draining a bounded buffer. Tasks
// that fail or panic are logged and dropped; nothing is ever returned to the
// code that enqueued them. Close stops intake and waits for queued tasks to
// finish, or for the context to expire.
package deferred

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Default sizing when the config leaves it unset.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
	DefaultTaskTime  = 10 * time.Second
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Queue is a bounded worker queue. The zero value is not usable; call New.
type Queue struct {
	tasks    chan task
	wg       *conc.WaitGroup
	log      *zap.Logger
	taskTime time.Duration

	// mu guards closed so Enqueue never sends on a closed channel.
	mu     sync.RWMutex
	closed bool

	// base is cancelled on Close when the drain deadline passes, which
	// aborts in-flight tasks that honour their context.
	base   context.Context
	cancel context.CancelFunc
}

// New starts workers goroutines reading from a buffer of size tasks.
// taskTime bounds each task; zero means DefaultTaskTime.
func New(workers, size int, taskTime time.Duration, log *zap.Logger) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	if taskTime <= 0 {
		taskTime = DefaultTaskTime
	}
	if log == nil {
		log = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:    make(chan task, size),
		wg:       conc.NewWaitGroup(),
		log:      log,
		taskTime: taskTime,
		base:     base,
		cancel:   cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Go(q.work)
	}
	log.Info("deferred queue started", zap.Int("workers", workers), zap.Int("size", size))
	return q
}

// Enqueue schedules fn. It returns false without blocking when the buffer is
// full or the queue is closed.
func (q *Queue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.tasks <- task{name: name, fn: fn}:
		return true
	default:
		return false
	}
}

// Len reports the number of tasks waiting for a worker.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Close stops intake and waits for the workers to drain the buffer. If ctx
// ends first, in-flight tasks are cancelled and ctx.Err() is returned once
// they return.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.log.Info("deferred queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.log.Warn("deferred queue drain interrupted", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (q *Queue) work() {
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	ctx, cancel := context.WithTimeout(q.base, q.taskTime)
	defer cancel()

	start := time.Now()
	var err error
	var pc panics.Catcher
	pc.Try(func() { err = t.fn(ctx) })

	if r := pc.Recovered(); r != nil {
		q.log.Error("deferred task panicked",
			zap.String("task", t.name),
			zap.String("panic", fmt.Sprint(r.Value)),
			zap.ByteString("stack", r.Stack))
		return
	}
	if err != nil {
		q.log.Warn("deferred task failed",
			zap.String("task", t.name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	q.log.Debug("deferred task done", zap.String("task", t.name), zap.Duration("took", time.Since(start)))
}
