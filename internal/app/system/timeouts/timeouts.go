// internal/app/system/timeouts/timeouts.go

// Package timeouts provides centralized timeout values for I/O done by the
// dispatch engine and the HTTP handlers.
//
// Values can be set at startup with Configure or ConfigureFromEnv; otherwise
// the defaults below apply.
//
//   - Ping: health checks
//   - DB: a single store call
//   - Slack: a single outbound Slack Web API call
//   - Ack: the budget for answering an inbound Slack callback
//   - Tick: an entire dispatch tick
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing  = 2 * time.Second
	DefaultDB    = 5 * time.Second
	DefaultSlack = 10 * time.Second
	DefaultAck   = 2500 * time.Millisecond // Slack gives up after 3s
	DefaultTick  = 5 * time.Minute
)

var mu sync.RWMutex

var (
	ping  = DefaultPing
	db    = DefaultDB
	slack = DefaultSlack
	ack   = DefaultAck
	tick  = DefaultTick
)

func get(v *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *v
}

func Ping() time.Duration  { return get(&ping) }
func DB() time.Duration    { return get(&db) }
func Slack() time.Duration { return get(&slack) }
func Ack() time.Duration   { return get(&ack) }
func Tick() time.Duration  { return get(&tick) }

// Config holds timeout values. Zero values are ignored.
type Config struct {
	Ping  time.Duration
	DB    time.Duration
	Slack time.Duration
	Ack   time.Duration
	Tick  time.Duration
}

// Configure overrides the non-zero values in cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&ping, cfg.Ping)
	set(&db, cfg.DB)
	set(&slack, cfg.Slack)
	set(&ack, cfg.Ack)
	set(&tick, cfg.Tick)
}

// Reset restores all timeouts to their defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping, db, slack, ack, tick = DefaultPing, DefaultDB, DefaultSlack, DefaultAck, DefaultTick
}

// ConfigureFromEnv reads WHOSTHAT_TIMEOUT_{PING,DB,SLACK,ACK,TICK} as Go
// durations. Invalid or non-positive values are ignored. Returns how many
// values were applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	configured := 0
	for name, dst := range map[string]*time.Duration{
		"WHOSTHAT_TIMEOUT_PING":  &ping,
		"WHOSTHAT_TIMEOUT_DB":    &db,
		"WHOSTHAT_TIMEOUT_SLACK": &slack,
		"WHOSTHAT_TIMEOUT_ACK":   &ack,
		"WHOSTHAT_TIMEOUT_TICK":  &tick,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			configured++
		}
	}
	return configured
}

// Current returns the active configuration, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, DB: db, Slack: slack, Ack: ack, Tick: tick}
}

// WithTimeout is context.WithTimeout whose cancel logs a warning when the
// deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Slack(), log, "chat.postMessage")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
