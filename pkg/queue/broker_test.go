package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch/engine/pkg/queue"
)

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return redis.NewClient(&redis.Options{Addr: m.Addr()})
}

type enqueuePayload struct {
	JobID string `json:"job_id"`
}

func TestBroker_EnqueueThenPop(t *testing.T) {
	rdb := newMiniredisClient(t)
	b := queue.NewBroker(rdb)

	require.NoError(t, b.Enqueue(context.Background(), "supervisor", enqueuePayload{JobID: "job-1"}))

	pool := queue.NewPool(b, testQueueConfig())
	got := make(chan json.RawMessage, 1)
	pool.Handle("supervisor", func(_ context.Context, payload json.RawMessage) error {
		got <- payload
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	select {
	case payload := <-got:
		var decoded enqueuePayload
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Equal(t, "job-1", decoded.JobID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler dispatch")
	}
}
