// Package supervisor implements the re-entrant dispatcher (spec.md §4.8.2):
// a single idempotent function, invoked repeatedly via the work queue for a
// job_id, that advances every task one phase by CASing PENDING/completion
// statuses into their *_STARTED sentinels and enqueuing the matching
// handler. The CAS is the serialisation point — concurrent re-entry for the
// same job never double-dispatches a phase.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/models"
)

// Queue kind names, shared with pkg/handlers registration.
const (
	KindSupervisor        = "supervisor"
	KindGenerateHypothesis = "generate_hypotheses"
	KindPerformResearch    = "perform_research"
	KindScoreEvidence      = "score_evidence"
	KindFindContradictions = "find_contradictions"
	KindReview             = "review"
	KindAggregateReport    = "aggregate_report"
)

// Store is the subset of pkg/storage.Store the supervisor needs.
type Store interface {
	ListTasksByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Task, error)
	CASTaskStatus(ctx context.Context, id uuid.UUID, from, to config.TaskStatus) (bool, error)
	CASTaskRejected(ctx context.Context, id uuid.UUID, from config.TaskStatus, feedback string, maxRejections int) (toStatus config.TaskStatus, won bool, err error)
	CASJobStatus(ctx context.Context, id uuid.UUID, from, to config.JobStatus) (bool, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// Enqueuer is the subset of pkg/queue.Pool the supervisor needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// taskTransition is one row of the state table in spec.md §4.8.1: a task
// sitting in From is atomically moved to Started and the handler named Kind
// is enqueued with its id.
type taskTransition struct {
	From    config.TaskStatus
	Started config.TaskStatus
	Kind    string
}

var transitions = []taskTransition{
	{config.TaskStatusPending, config.TaskStatusHypothesizingStarted, KindGenerateHypothesis},
	{config.TaskStatusHypothesized, config.TaskStatusResearchingStarted, KindPerformResearch},
	{config.TaskStatusResearched, config.TaskStatusScoringStarted, KindScoreEvidence},
	{config.TaskStatusScored, config.TaskStatusContradictingStarted, KindFindContradictions},
	{config.TaskStatusContradicted, config.TaskStatusReviewStarted, KindReview},
}

// taskPayload is the JSON body enqueued for every task-scoped handler.
type taskPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// jobPayload is the JSON body enqueued for job-scoped handlers and for the
// supervisor's own re-entry.
type jobPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// supervisorPayload is what Handler decodes from the queue before calling
// Dispatch.
type supervisorPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// Handler returns a queue.Handler closure bound to store/queue, suitable for
// registration as the KindSupervisor route. maxRejections is
// config.Config.TaskMaxRejections.
func Handler(store Store, queue Enqueuer, maxRejections int) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p supervisorPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal supervisor payload: %w", err)
		}
		return Dispatch(ctx, store, queue, p.JobID, maxRejections)
	}
}

// Enqueue pushes a re-entry for job_id onto the supervisor's own queue kind.
func Enqueue(ctx context.Context, queue Enqueuer, jobID uuid.UUID) error {
	return queue.Enqueue(ctx, KindSupervisor, jobPayload{JobID: jobID})
}

// Dispatch implements the algorithm in spec.md §4.8.2.
func Dispatch(ctx context.Context, store Store, queue Enqueuer, jobID uuid.UUID, maxRejections int) error {
	log := slog.With("job_id", jobID)

	tasks, err := store.ListTasksByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list tasks for job %s: %w", jobID, err)
	}

	allApproved := true

	for _, t := range tasks {
		switch {
		case t.Status == config.TaskStatusRejected:
			toStatus, won, err := store.CASTaskRejected(ctx, t.ID, config.TaskStatusRejected, derefOr(t.Feedback, ""), maxRejections)
			if err != nil {
				log.Error("cas task rejected failed", "task_id", t.ID, "error", err)
				allApproved = false
				continue
			}
			if !won {
				// Lost the race to a concurrent supervisor run; treat as in-flight.
				allApproved = false
				continue
			}
			if toStatus == config.TaskStatusApprovedDegraded {
				log.Warn("task exhausted rejection budget, accepting degraded result", "task_id", t.ID)
				continue
			}
			allApproved = false
			if err := queue.Enqueue(ctx, KindPerformResearch, taskPayload{TaskID: t.ID}); err != nil {
				log.Error("enqueue research retry failed", "task_id", t.ID, "error", err)
			}

		case t.Status.IsStarted():
			allApproved = false

		case t.Status.IsTerminalSuccess():
			// APPROVED / APPROVED_DEGRADED — nothing to do.

		default:
			transitioned := false
			for _, tr := range transitions {
				if t.Status != tr.From {
					continue
				}
				won, err := store.CASTaskStatus(ctx, t.ID, tr.From, tr.Started)
				if err != nil {
					log.Error("cas task status failed", "task_id", t.ID, "error", err)
					break
				}
				if won {
					if err := queue.Enqueue(ctx, tr.Kind, taskPayload{TaskID: t.ID}); err != nil {
						log.Error("enqueue phase handler failed", "task_id", t.ID, "kind", tr.Kind, "error", err)
					}
				}
				transitioned = true
				break
			}
			allApproved = false
			if !transitioned {
				log.Warn("task in unrecognised status, leaving untouched", "task_id", t.ID, "status", t.Status)
			}
		}
	}

	if allApproved && len(tasks) > 0 {
		job, err := store.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("get job %s: %w", jobID, err)
		}
		if job.Status == config.JobStatusGenerating || job.Status == config.JobStatusCompleted {
			return nil
		}
		won, err := store.CASJobStatus(ctx, jobID, job.Status, config.JobStatusGenerating)
		if err != nil {
			return fmt.Errorf("cas job status to generating: %w", err)
		}
		if won {
			if err := queue.Enqueue(ctx, KindAggregateReport, jobPayload{JobID: jobID}); err != nil {
				log.Error("enqueue aggregate_report failed", "error", err)
			}
		}
	}

	return nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
