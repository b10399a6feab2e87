// internal/app/system/rostercache/rostercache.go

// Package rostercache keeps a workspace's Slack member list in Valkey so a
// dispatch tick does not page through users.list for every game.
//
// Entries are kept for the stale TTL but only served as-is while younger
// than the fresh TTL. An older entry is served only when Slack rate-limits
// the refresh. Keys are derived from a hash of the bot token; tokens are
// never written to the cache.
package rostercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/whosthat/internal/app/system/slackapi"
	"github.com/dalemusser/whosthat/internal/app/system/timeouts"
	"github.com/dalemusser/whosthat/internal/domain/models"
	json "github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultFreshTTL = 10 * time.Minute
	DefaultStaleTTL = 24 * time.Hour

	keyPrefix = "whosthat:roster:"
)

// MemberLister is the upstream roster provider. *slackapi.Client satisfies it.
type MemberLister interface {
	ListMembers(ctx context.Context, token string) ([]models.RosterMember, error)
}

type entry struct {
	FetchedAt time.Time             `json:"fetched_at"`
	Members   []models.RosterMember `json:"members"`
}

type Options struct {
	FreshTTL time.Duration
	StaleTTL time.Duration
}

// Cache implements dispatch.RosterSource.
type Cache struct {
	client   valkey.Client // nil means pass-through
	upstream MemberLister
	fresh    time.Duration
	stale    time.Duration
	sf       singleflight.Group
	now      func() time.Time
	log      *zap.Logger
}

// New wraps upstream. A nil client disables caching but still collapses
// concurrent fetches for the same token.
func New(client valkey.Client, upstream MemberLister, opts Options, log *zap.Logger) *Cache {
	if opts.FreshTTL <= 0 {
		opts.FreshTTL = DefaultFreshTTL
	}
	if opts.StaleTTL <= 0 {
		opts.StaleTTL = DefaultStaleTTL
	}
	if opts.StaleTTL < opts.FreshTTL {
		opts.StaleTTL = opts.FreshTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		client:   client,
		upstream: upstream,
		fresh:    opts.FreshTTL,
		stale:    opts.StaleTTL,
		now:      time.Now,
		log:      log,
	}
}

// ClientConfig describes how to reach Valkey.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient dials Valkey. Client-side caching is off; entries are small and
// read at most once per game per tick.
func NewClient(cfg ClientConfig) (valkey.Client, error) {
	c, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// Key returns the cache key for a token.
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])[:16]
}

// FetchRoster returns the member list for the workspace owning token.
func (c *Cache) FetchRoster(ctx context.Context, token string) ([]models.RosterMember, error) {
	key := Key(token)

	cached, hit := c.read(ctx, key)
	if hit && c.now().Sub(cached.FetchedAt) < c.fresh {
		return cached.Members, nil
	}

	// The shared fetch outlives any one caller; a waiter that gives up
	// returns its own context error without failing the others.
	ch := c.sf.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Slack())
		defer cancel()
		members, err := c.upstream.ListMembers(fctx, token)
		if err != nil {
			return nil, err
		}
		c.write(fctx, key, members)
		return members, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, err := res.Val, res.Err
	if err != nil {
		if hit && slackapi.IsRateLimited(err) {
			c.log.Warn("serving stale roster",
				zap.String("key", key),
				zap.Duration("age", c.now().Sub(cached.FetchedAt)),
				zap.Error(err))
			return cached.Members, nil
		}
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	return v.([]models.RosterMember), nil
}

// Invalidate drops the cached roster for token.
func (c *Cache) Invalidate(ctx context.Context, token string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Do(ctx, c.client.B().Del().Key(Key(token)).Build()).Error()
}

// Ping checks the Valkey connection. A pass-through cache always succeeds.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Enabled reports whether a Valkey client is attached.
func (c *Cache) Enabled() bool {
	return c.client != nil
}

func (c *Cache) read(ctx context.Context, key string) (entry, bool) {
	if c.client == nil {
		return entry{}, false
	}
	raw, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if !valkey.IsValkeyNil(err) && !errors.Is(err, context.Canceled) {
			c.log.Warn("roster cache read failed", zap.String("key", key), zap.Error(err))
		}
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.log.Warn("roster cache entry corrupt", zap.String("key", key), zap.Error(err))
		return entry{}, false
	}
	return e, true
}

func (c *Cache) write(ctx context.Context, key string, members []models.RosterMember) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(entry{FetchedAt: c.now().UTC(), Members: members})
	if err != nil {
		c.log.Warn("roster cache encode failed", zap.Error(err))
		return
	}
	cmd := c.client.B().Set().Key(key).Value(valkey.BinaryString(raw)).Ex(c.stale).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.log.Warn("roster cache write failed", zap.String("key", key), zap.Error(err))
	}
}
