// Package api provides the HTTP surface of the research engine (spec.md §6).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/cache"
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/metrics"
	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/progress"
	"github.com/deepresearch/engine/pkg/storage"
	"github.com/deepresearch/engine/pkg/version"
)

// Enqueuer is the subset of pkg/queue.Pool the API needs to kick off a job.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// Server is the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	store       *storage.Store
	redis       *cache.Client
	idempotency *cache.Idempotency
	queue       Enqueuer
	metrics     *metrics.Metrics
}

// NewServer creates a new API server bound to its dependencies and
// registers every route (mirrors tarsy's NewServer/setupRoutes split).
func NewServer(cfg *config.Config, store *storage.Store, redisClient *cache.Client, idempotency *cache.Idempotency, queue Enqueuer, m *metrics.Metrics) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		router:      router,
		cfg:         cfg,
		store:       store,
		redis:       redisClient,
		idempotency: idempotency,
		queue:       queue,
		metrics:     m,
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying gin engine, primarily for tests driving the
// server via httptest without a real listening socket.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	authed := s.router.Group("/")
	authed.Use(bearerAuth(s.cfg.Auth))
	authed.POST("/research", s.submitResearchHandler)
	authed.GET("/research/:job_id", s.getResearchHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Details: HealthDetails{Version: version.Full()},
	})
}

// readyHandler handles GET /ready, reporting database and Redis reachability.
func (s *Server) readyHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if _, err := s.store.Health(reqCtx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if err := s.redis.EnsureConnection(reqCtx); err != nil {
		redisStatus = "unhealthy"
	}

	status := "ok"
	httpStatus := http.StatusOK
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, ReadyResponse{
		Status:  status,
		Details: ReadyDetails{Database: dbStatus, Redis: redisStatus},
	})
}

// submitResearchHandler handles POST /research. When an Idempotency-Key
// header is present and hits the cache, the existing job's status is
// returned instead of creating a duplicate (spec.md §6).
func (s *Server) submitResearchHandler(c *gin.Context) {
	var req SubmitResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	idemKey := c.GetHeader("Idempotency-Key")
	if idemKey != "" {
		if cached, hit, err := s.idempotency.GetValue(ctx, idempotencyCacheKey(idemKey)); err == nil && hit {
			if jobID, parseErr := uuid.Parse(cached); parseErr == nil {
				if job, getErr := s.store.GetJob(ctx, jobID); getErr == nil {
					c.JSON(http.StatusOK, s.jobStatusResponse(ctx, job))
					return
				}
			}
		}
	}

	job := models.NewJob(req.Idea)
	if err := s.store.CreateJob(ctx, job); err != nil {
		writeServiceError(c, err)
		return
	}

	if idemKey != "" {
		_ = s.idempotency.Put(ctx, idempotencyCacheKey(idemKey), job.ID.String())
	}

	if err := s.queue.Enqueue(ctx, KindEnrich, enrichPayload{JobID: job.ID}); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.jobStatusResponse(ctx, job))
}

// getResearchHandler handles GET /research/{job_id}.
func (s *Server) getResearchHandler(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	ctx := c.Request.Context()
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := JobResultResponse{JobStatusResponse: s.jobStatusResponse(ctx, job)}
	if job.Description != nil {
		resp.Description = *job.Description
	}
	resp.Report = job.Report

	c.JSON(http.StatusOK, resp)
}

// jobStatusResponse projects a job's current progress via pkg/progress.
func (s *Server) jobStatusResponse(ctx context.Context, job *models.Job) JobStatusResponse {
	tasks, err := s.store.ListTasksByJob(ctx, job.ID)
	if err != nil {
		tasks = nil
	}
	snap := progress.Project(job.Status, tasks)

	resp := JobStatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		ProgressPercent: snap.Percent,
		CurrentPhase:    snap.Phase,
		CreatedAt:       job.CreatedAt,
	}
	if !job.UpdatedAt.IsZero() {
		updated := job.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func idempotencyCacheKey(key string) string {
	return "idempotency:research:" + key
}
