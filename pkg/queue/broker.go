// Package queue implements the at-least-once work queue and worker pool
// (spec.md §4.7): a Redis-list broker feeding a pool of workers that dispatch
// by kind to registered Handlers, adapted from the teacher's DB-claim worker
// loop (select-for-update-skip-locked → BLPOP).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "deepresearch:queue:"

func keyFor(kind string) string {
	return keyPrefix + kind
}

// Broker is a Redis-list backed at-least-once queue. Enqueue performs an
// RPUSH; workers BLPOP across all registered kinds so delivery order across
// kinds is unspecified, matching spec.md §4.7.
type Broker struct {
	rdb *redis.Client
}

// NewBroker wraps an existing go-redis client as a queue broker.
func NewBroker(rdb *redis.Client) *Broker {
	return &Broker{rdb: rdb}
}

// Enqueue marshals payload to JSON and pushes it onto kind's list. Enqueue is
// fire-and-forget from the caller's perspective: a successful return means
// the broker accepted the item, not that any worker has claimed it yet.
func (b *Broker) Enqueue(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for kind %q: %w", kind, err)
	}
	if err := b.rdb.RPush(ctx, keyFor(kind), data).Err(); err != nil {
		return fmt.Errorf("enqueue kind %q: %w", kind, err)
	}
	return nil
}

// pop blocks for up to timeout across all of kinds, returning the kind that
// produced a value and its raw payload. A nil error with an empty kind means
// the timeout elapsed with nothing available — callers treat this as an
// idle poll.
func (b *Broker) pop(ctx context.Context, kinds []string, timeout time.Duration) (kind string, payload json.RawMessage, err error) {
	keys := make([]string, len(kinds))
	for i, k := range kinds {
		keys[i] = keyFor(k)
	}
	res, err := b.rdb.BLPop(ctx, timeout, keys...).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil, nil
		}
		return "", nil, err
	}
	// res is [key, value]; map the key back to its bare kind name.
	for _, k := range kinds {
		if res[0] == keyFor(k) {
			return k, json.RawMessage(res[1]), nil
		}
	}
	return "", nil, fmt.Errorf("unrecognised queue key %q in BLPOP result", res[0])
}
