package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoWorkAvailable names the empty-poll case. The broker does not return
// it: an empty poll comes back from pop as an empty kind with a nil error,
// which workers treat as an idle poll rather than an error worth logging.
var ErrNoWorkAvailable = errors.New("no work available")

// Handler processes one payload dequeued for its kind. Handlers must be
// idempotent with respect to the task/job state machine (spec.md §4.7):
// redelivery after a crash or timeout must be safe to re-run.
type Handler func(ctx context.Context, payload json.RawMessage) error

// WorkerStatus is the current state of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a point-in-time snapshot of one worker, mirroring the
// teacher's WorkerHealth shape.
type WorkerHealth struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	CurrentKind    string    `json:"current_kind,omitempty"`
	ItemsProcessed int       `json:"items_processed"`
	LastActivity   time.Time `json:"last_activity"`
}

// PoolHealth is a point-in-time snapshot of the whole worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveWorkers int            `json:"active_workers"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}
