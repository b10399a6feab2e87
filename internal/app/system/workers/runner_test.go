package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/whosthat/internal/app/system/tasks"
	"go.uber.org/zap"
)

func TestRunner_RunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	var overlap atomic.Bool
	var active atomic.Int32

	r := NewRunner(tasks.Job{
		Name:     "count",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			defer active.Add(-1)
			runs.Add(1)
			time.Sleep(8 * time.Millisecond)
			return errors.New("ignored")
		},
	}, zap.NewNop())
	r.Start()
	time.Sleep(60 * time.Millisecond)
	r.Stop()

	n := runs.Load()
	if n == 0 {
		t.Fatal("job never ran")
	}
	if overlap.Load() {
		t.Error("runs overlapped")
	}
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != n {
		t.Error("job ran after Stop")
	}
}

func TestRunner_StopCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool
	r := NewRunner(tasks.Job{
		Name:     "slow",
		Interval: time.Millisecond,
		Timeout:  time.Hour,
		Run: func(ctx context.Context) error {
			select {
			case <-started:
			default:
				close(started)
			}
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		},
	}, zap.NewNop())
	r.Start()
	<-started

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	if !cancelled.Load() {
		t.Error("in-flight run should see cancellation")
	}
}
