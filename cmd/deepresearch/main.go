// deepresearch runs the research-report orchestration service: HTTP API,
// work queue broker and worker pool, wired to Postgres and Redis.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/deepresearch/engine/pkg/agentrunner"
	"github.com/deepresearch/engine/pkg/api"
	"github.com/deepresearch/engine/pkg/cache"
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/handlers"
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/metrics"
	"github.com/deepresearch/engine/pkg/queue"
	"github.com/deepresearch/engine/pkg/storage"
	"github.com/deepresearch/engine/pkg/supervisor"
	"github.com/deepresearch/engine/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded, continuing with existing environment: %v", err)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	log.Printf("starting %s", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}()
	log.Println("connected to Postgres")

	redisOpts, err := redis.ParseURL(cfg.CacheURL)
	if err != nil {
		log.Fatalf("invalid CACHE_URL: %v", err)
	}
	redisClient := cache.NewClient(redisOpts, slog.Default())
	if err := redisClient.EnsureConnection(ctx); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	log.Println("connected to Redis")

	idempotency := cache.NewIdempotency(redisClient, slog.Default())

	m := metrics.New()

	providerCfg, err := cfg.LLMProviderRegistry.Default()
	if err != nil {
		log.Fatalf("no LLM provider configured: %v", err)
	}
	provider, err := llm.NewProvider("default", *providerCfg, cfg.Timeouts.LLMCall, m)
	if err != nil {
		log.Fatalf("failed to build LLM provider: %v", err)
	}
	agentrunner.Configure(cfg.Timeouts.ToolCall, m)

	broker := queue.NewBroker(redisClient.GetClient())
	pool := queue.NewPool(broker, cfg.Queue)
	pool.SetMetrics(m)

	pool.Handle(handlers.KindEnrich, handlers.NewEnrichHandler(store, provider, pool))
	pool.Handle(handlers.KindPlan, handlers.NewPlanHandler(store, provider, pool))
	pool.Handle(handlers.KindFinalCritique, handlers.NewFinalCritiqueHandler(store, provider, provider))

	pool.Handle(supervisor.KindSupervisor, supervisor.Handler(store, pool, cfg.TaskMaxRejections))
	pool.Handle(supervisor.KindGenerateHypothesis, handlers.NewHypothesizeHandler(store, provider, pool))
	pool.Handle(supervisor.KindPerformResearch, handlers.NewResearchHandler(store, provider, pool, store, provider, cfg.WebSearchKey))
	pool.Handle(supervisor.KindScoreEvidence, handlers.NewScoreHandler(store, provider, pool))
	pool.Handle(supervisor.KindFindContradictions, handlers.NewContradictHandler(store, provider, pool, cfg.WebSearchKey))
	pool.Handle(supervisor.KindReview, handlers.NewReviewHandler(store, provider, pool))
	pool.Handle(supervisor.KindAggregateReport, handlers.NewAggregateHandler(store, provider, pool))

	if err := pool.Start(ctx); err != nil {
		log.Fatalf("failed to start worker pool: %v", err)
	}
	defer pool.Stop()
	log.Println("worker pool started")

	server := api.NewServer(cfg, store, redisClient, idempotency, pool, m)

	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("listening on :%s", httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down HTTP server: %v", err)
	}

	pool.Stop()
	log.Println("shutdown complete")
}
