package queue

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/metrics"
)

// Worker pops from its pool's broker across all registered kinds and
// dispatches each item to the matching Handler. Shape mirrors the teacher's
// Worker: run → pollAndProcess → dispatch, but popping from Redis instead of
// claiming a row with SELECT ... FOR UPDATE SKIP LOCKED.
type Worker struct {
	id     string
	broker  *Broker
	kinds   []string
	routes  map[string]Handler
	config  *config.QueueConfig
	metrics *metrics.Metrics

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentKind    string
	itemsProcessed int
	lastActivity   time.Time
}

func newWorker(id string, broker *Broker, kinds []string, routes map[string]Handler, cfg *config.QueueConfig, m *metrics.Metrics) *Worker {
	return &Worker{
		id:           id,
		broker:       broker,
		kinds:        kinds,
		routes:       routes,
		config:       cfg,
		metrics:      m,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop after its current item and waits for it
// to finish. Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns a snapshot of this worker's state.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentKind:    w.currentKind,
		ItemsProcessed: w.itemsProcessed,
		LastActivity:   w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				log.Error("error processing item", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess blocks on the broker for up to the jittered poll interval,
// and on success dispatches the popped payload to its kind's Handler.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	kind, payload, err := w.broker.pop(ctx, w.kinds, w.pollInterval())
	if err != nil {
		return err
	}
	if kind == "" {
		// Timed out with nothing available — not an error, just idle.
		return nil
	}

	handler, ok := w.routes[kind]
	if !ok {
		log := slog.With("worker_id", w.id, "kind", kind)
		log.Error("no handler registered for kind")
		return nil
	}

	w.setStatus(WorkerStatusWorking, kind)
	defer w.setStatus(WorkerStatusIdle, "")

	handlerCtx, cancel := context.WithTimeout(ctx, w.config.HandlerTimeout)
	defer cancel()

	start := time.Now()
	outcome := "ok"
	if err := handler(handlerCtx, payload); err != nil {
		slog.With("worker_id", w.id, "kind", kind).Error("handler failed", "error", err)
		// The correctness of the state machine never depends on the queue's
		// own retry policy (spec.md §4.7) — handlers encode their own
		// recovery by writing REJECTED and re-enqueuing the supervisor, so a
		// handler error here is logged and dropped, not requeued.
		outcome = "error"
	}
	w.metrics.ObserveQueueHandled(kind, outcome, time.Since(start))

	w.mu.Lock()
	w.itemsProcessed++
	w.mu.Unlock()

	return nil
}

// pollInterval returns the base poll duration jittered within
// [base-jitter, base+jitter], spreading concurrent workers' BLPOP calls to
// avoid a thundering herd against the broker.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, kind string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentKind = kind
	w.lastActivity = time.Now()
}
