package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/metrics"
)

// Pool manages a fixed set of Workers sharing one Broker and Handler
// registry, mirroring the teacher's WorkerPool (spawn N workers, graceful
// Stop, health snapshot) with DB-claim replaced by broker-pop.
type Pool struct {
	broker  *Broker
	config  *config.QueueConfig
	routes  map[string]Handler
	workers []*Worker
	metrics *metrics.Metrics

	started  bool
	stopOnce sync.Once
}

// NewPool creates a worker pool bound to broker. Register handlers with
// Handle before calling Start.
func NewPool(broker *Broker, cfg *config.QueueConfig) *Pool {
	return &Pool{
		broker:  broker,
		config:  cfg,
		routes:  make(map[string]Handler),
		workers: make([]*Worker, 0, cfg.WorkerCount),
	}
}

// SetMetrics attaches a metrics sink; every worker spawned after this call
// records its handling outcomes and durations through it. A nil or never-set
// sink is fine — metrics.Metrics methods are no-ops on a nil receiver.
func (p *Pool) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// Enqueue pushes payload onto kind's list via the pool's broker.
func (p *Pool) Enqueue(ctx context.Context, kind string, payload any) error {
	return p.broker.Enqueue(ctx, kind, payload)
}

// Handle registers fn as the handler for kind. Must be called before Start;
// registering the same kind twice replaces the earlier handler.
func (p *Pool) Handle(kind string, fn Handler) {
	p.routes[kind] = fn
}

// Start spawns WorkerCount worker goroutines, each polling across every
// registered kind. Safe to call only once; subsequent calls are no-ops.
func (p *Pool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call")
		return nil
	}
	if len(p.routes) == 0 {
		return fmt.Errorf("starting worker pool with no handlers registered")
	}
	p.started = true

	kinds := make([]string, 0, len(p.routes))
	for k := range p.routes {
		kinds = append(kinds, k)
	}

	slog.Info("starting worker pool", "worker_count", p.config.WorkerCount, "kinds", kinds)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		w := newWorker(workerID, p.broker, kinds, p.routes, p.config, p.metrics)
		p.workers = append(p.workers, w)
		w.Start(ctx)
	}

	slog.Info("worker pool started")
	return nil
}

// Stop signals every worker to finish its current item and exit, blocking
// until all have returned. Safe to call multiple times.
func (p *Pool) Stop() {
	slog.Info("stopping worker pool gracefully")
	p.stopOnce.Do(func() {
		for _, w := range p.workers {
			w.Stop()
		}
	})
	slog.Info("worker pool stopped gracefully")
}

// Health returns a snapshot of the pool and every worker within it.
func (p *Pool) Health() *PoolHealth {
	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		h := w.Health()
		stats[i] = h
		if h.Status == string(WorkerStatusWorking) {
			active++
		}
	}
	return &PoolHealth{
		IsHealthy:     len(p.workers) > 0,
		TotalWorkers:  len(p.workers),
		ActiveWorkers: active,
		WorkerStats:   stats,
	}
}
