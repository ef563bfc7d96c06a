// Package cache wraps a Redis connection used both as the idempotency cache
// (C2) and as the work-queue broker (C7).
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Client lazily establishes a Redis connection and exposes the underlying
// go-redis client once connected. Connection attempts are guarded by
// double-checked locking so concurrent callers don't thunder into Redis at
// once; only the first caller actually dials.
type Client struct {
	opts   *redis.Options
	logger *slog.Logger

	mu        sync.Mutex
	connected atomic.Bool
	rdb       *redis.Client
}

// NewClient constructs a Client without connecting. The connection is
// established lazily on the first EnsureConnection call.
func NewClient(opts *redis.Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:   opts,
		logger: logger,
		rdb:    redis.NewClient(opts),
	}
}

// GetClient returns the underlying go-redis client. It is safe to call
// before EnsureConnection; operations issued on it before a successful
// EnsureConnection simply pay the dial cost inline.
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// EnsureConnection pings Redis once and remembers success via an atomic flag
// so repeat calls take a fast path (no lock, no round trip). On failure it
// returns a typed-ish error the caller can treat as "operate in degraded
// mode" rather than a fatal condition.
func (c *Client) EnsureConnection(ctx context.Context) error {
	if c.connected.Load() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the lock: another goroutine may have connected while
	// we were waiting.
	if c.connected.Load() {
		return nil
	}

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}

	c.connected.Store(true)
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	c.connected.Store(false)
	return c.rdb.Close()
}
