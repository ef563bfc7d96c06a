package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch/engine/pkg/cache"
)

func newMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestClient_EnsureConnection_Success(t *testing.T) {
	m := newMiniredis(t)
	c := cache.NewClient(&redis.Options{Addr: m.Addr()}, nil)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.EnsureConnection(context.Background()))
	assert.NotNil(t, c.GetClient())
}

func TestClient_EnsureConnection_FastPathOnSecondCall(t *testing.T) {
	m := newMiniredis(t)
	c := cache.NewClient(&redis.Options{Addr: m.Addr()}, nil)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.EnsureConnection(context.Background()))

	start := time.Now()
	require.NoError(t, c.EnsureConnection(context.Background()))
	assert.Less(t, time.Since(start), time.Millisecond)
}

func TestClient_EnsureConnection_Unavailable(t *testing.T) {
	c := cache.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}, nil)
	t.Cleanup(func() { _ = c.Close() })

	err := c.EnsureConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unavailable")
}

func TestClient_EnsureConnection_ConcurrentCallsDoNotRace(t *testing.T) {
	m := newMiniredis(t)
	c := cache.NewClient(&redis.Options{Addr: m.Addr()}, nil)
	t.Cleanup(func() { _ = c.Close() })

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.EnsureConnection(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestIdempotency_ClaimOnceThenRejectsRedelivery(t *testing.T) {
	m := newMiniredis(t)
	c := cache.NewClient(&redis.Options{Addr: m.Addr()}, nil)
	t.Cleanup(func() { _ = c.Close() })

	idem := cache.NewIdempotency(c, nil)
	ctx := context.Background()

	require.NoError(t, idem.Claim(ctx, "job:abc:enrich"))

	err := idem.Claim(ctx, "job:abc:enrich")
	assert.ErrorIs(t, err, cache.ErrAlreadyProcessed)
}

func TestIdempotency_DegradesWhenCacheUnavailable(t *testing.T) {
	c := cache.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond}, nil)
	t.Cleanup(func() { _ = c.Close() })

	idem := cache.NewIdempotency(c, nil)

	// An unavailable cache must never block or fail the caller.
	assert.NoError(t, idem.Claim(context.Background(), "job:abc:enrich"))

	found, err := idem.Get(context.Background(), "job:abc:enrich")
	assert.NoError(t, err)
	assert.False(t, found)
}
