package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/deepresearch/engine/pkg/api"
	"github.com/deepresearch/engine/pkg/cache"
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/metrics"
	"github.com/deepresearch/engine/pkg/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := storage.Open(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestRedisClient(t *testing.T) *cache.Client {
	t.Helper()
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return cache.NewClient(&redis.Options{Addr: m.Addr()}, nil)
}

type stubEnqueuer struct {
	kinds []string
}

func (s *stubEnqueuer) Enqueue(_ context.Context, kind string, _ any) error {
	s.kinds = append(s.kinds, kind)
	return nil
}

func newTestServer(t *testing.T, cfg *config.Config, enq *stubEnqueuer) (*api.Server, *storage.Store) {
	t.Helper()
	store := newTestStore(t)
	redisClient := newTestRedisClient(t)
	idempotency := cache.NewIdempotency(redisClient, nil)
	return api.NewServer(cfg, store, redisClient, idempotency, enq, metrics.New()), store
}

func noAuthConfig() *config.Config {
	return &config.Config{Auth: &config.AuthConfig{Enabled: false}}
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, noAuthConfig(), &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestServer_Ready(t *testing.T) {
	srv, _ := newTestServer(t, noAuthConfig(), &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_SubmitResearch_CreatesJobAndEnqueuesEnrich(t *testing.T) {
	enq := &stubEnqueuer{}
	srv, store := newTestServer(t, noAuthConfig(), enq)

	body := strings.NewReader(`{"idea":"will cats replace cars"}`)
	req := httptest.NewRequest(http.MethodPost, "/research", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"enrich"}, enq.kinds)

	var resp api.JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, config.JobStatusPending, resp.Status)

	job, err := store.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.Equal(t, "will cats replace cars", job.Idea)
}

func TestServer_SubmitResearch_RejectsShortIdea(t *testing.T) {
	srv, _ := newTestServer(t, noAuthConfig(), &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/research", strings.NewReader(`{"idea":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_SubmitResearch_IdempotencyKeyReturnsSameJob(t *testing.T) {
	enq := &stubEnqueuer{}
	srv, _ := newTestServer(t, noAuthConfig(), enq)

	submit := func() api.JobStatusResponse {
		req := httptest.NewRequest(http.MethodPost, "/research", strings.NewReader(`{"idea":"will cats replace cars"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "fixed-key")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp api.JobStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := submit()
	second := submit()
	require.Equal(t, first.JobID, second.JobID)
	require.Len(t, enq.kinds, 1, "the second submit must not enqueue a duplicate enrich")
}

func TestServer_GetResearch_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, noAuthConfig(), &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/research/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_BearerAuth_RejectsMissingToken(t *testing.T) {
	cfg := &config.Config{Auth: &config.AuthConfig{Enabled: true, SecretKey: "s3cret"}}
	srv, _ := newTestServer(t, cfg, &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/research", strings.NewReader(`{"idea":"will cats replace cars"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_BearerAuth_AcceptsValidToken(t *testing.T) {
	cfg := &config.Config{Auth: &config.AuthConfig{Enabled: true, SecretKey: "s3cret"}}
	srv, _ := newTestServer(t, cfg, &stubEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/research", strings.NewReader(`{"idea":"will cats replace cars"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Metrics_Served(t *testing.T) {
	m := metrics.New()
	m.ObserveQueueHandled("enrich", "ok", time.Second)
	redisClient := newTestRedisClient(t)
	srv := api.NewServer(noAuthConfig(), newTestStore(t), redisClient, cache.NewIdempotency(redisClient, nil), &stubEnqueuer{}, m)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "deepresearch_queue_handled_total")
}
