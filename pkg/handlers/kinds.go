package handlers

import "context"

// Queue kind names for the job-scoped handlers that run once at the start
// and end of a job's life, outside the supervisor's per-task loop (spec.md
// §4.8.3 enrich, plan, final_critique). aggregate_report is dispatched by
// the supervisor itself (pkg/supervisor.KindAggregateReport) once every
// task reaches a terminal success status.
const (
	KindEnrich        = "enrich"
	KindPlan          = "plan"
	KindFinalCritique = "final_critique"
)

// Enqueuer is the subset of pkg/queue.Pool every handler needs to chain into
// its successor.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}
