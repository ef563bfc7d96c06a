package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyTTL is how long a dispatched handler's "already ran" key
// survives — long enough to absorb the queue's at-least-once redelivery
// window without growing unbounded.
const DefaultIdempotencyTTL = 24 * time.Hour

// ErrAlreadyProcessed is returned by Claim when the key was already present,
// meaning the caller lost the race to handle this delivery.
var ErrAlreadyProcessed = errors.New("cache: already processed")

// Idempotency guards handler re-delivery: a handler claims a key before
// doing work, and any concurrent or redelivered claim of the same key is
// rejected. A cache that is down degrades to "let it run" rather than
// blocking the handler — data loss here is cheaper than starving the queue.
type Idempotency struct {
	client *Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdempotency wraps a Client with the key-only idempotency semantics
// described in SPEC_FULL.md §9 ("unchanged — key-only").
func NewIdempotency(client *Client, logger *slog.Logger) *Idempotency {
	if logger == nil {
		logger = slog.Default()
	}
	return &Idempotency{client: client, ttl: DefaultIdempotencyTTL, logger: logger}
}

// Claim attempts to set key exclusively (SETNX semantics via Redis's SET...NX).
// It returns ErrAlreadyProcessed if another caller already claimed it. On a
// cache connectivity failure it logs a warning and returns nil — the caller
// proceeds without the safety net rather than stalling.
func (i *Idempotency) Claim(ctx context.Context, key string) error {
	if err := i.client.EnsureConnection(ctx); err != nil {
		i.logger.WarnContext(ctx, "idempotency cache unavailable, proceeding without claim", "key", key, "error", err)
		return nil
	}

	ok, err := i.client.GetClient().SetNX(ctx, key, "1", i.ttl).Result()
	if err != nil {
		i.logger.WarnContext(ctx, "idempotency claim failed, proceeding without claim", "key", key, "error", err)
		return nil
	}
	if !ok {
		return ErrAlreadyProcessed
	}
	return nil
}

// Get reports whether key has already been claimed, without claiming it.
// Cache unavailability reads as "not claimed" (cache miss), per SPEC_FULL §4.2.
func (i *Idempotency) Get(ctx context.Context, key string) (bool, error) {
	if err := i.client.EnsureConnection(ctx); err != nil {
		i.logger.WarnContext(ctx, "idempotency cache unavailable, treating as cache miss", "key", key, "error", err)
		return false, nil
	}

	_, err := i.client.GetClient().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		i.logger.WarnContext(ctx, "idempotency lookup failed, treating as cache miss", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Put stores key -> value with the standard TTL (SET key value EX 86400).
// Used by POST /research to remember an Idempotency-Key's resulting job_id
// (SPEC_FULL.md §4.2, spec.md §6). A cache write failure is logged and
// swallowed — the request still succeeded, it just won't be deduplicated on
// retry.
func (i *Idempotency) Put(ctx context.Context, key, value string) error {
	if err := i.client.EnsureConnection(ctx); err != nil {
		i.logger.WarnContext(ctx, "idempotency cache unavailable, skipping put", "key", key, "error", err)
		return nil
	}
	if err := i.client.GetClient().Set(ctx, key, value, i.ttl).Err(); err != nil {
		i.logger.WarnContext(ctx, "idempotency put failed", "key", key, "error", err)
	}
	return nil
}

// GetValue returns the value previously stored by Put, if any. Cache
// unavailability or a miss both read as (\"\", false, nil) — the caller
// proceeds to create a fresh job rather than stalling on a degraded cache.
func (i *Idempotency) GetValue(ctx context.Context, key string) (string, bool, error) {
	if err := i.client.EnsureConnection(ctx); err != nil {
		i.logger.WarnContext(ctx, "idempotency cache unavailable, treating as cache miss", "key", key, "error", err)
		return "", false, nil
	}

	val, err := i.client.GetClient().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		i.logger.WarnContext(ctx, "idempotency lookup failed, treating as cache miss", "key", key, "error", err)
		return "", false, nil
	}
	return val, true, nil
}
