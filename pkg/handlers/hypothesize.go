package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/agentrunner"
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/supervisor"
)

type taskPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// TaskStore is the persistence surface every task-scoped phase handler needs.
type TaskStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	SetTaskHypotheses(ctx context.Context, id uuid.UUID, v *models.HypothesisSet) error
	SetTaskResult(ctx context.Context, id uuid.UUID, result string) error
	SetTaskEvidenceRating(ctx context.Context, id uuid.UUID, v *models.EvidenceRating) error
	SetTaskContradictions(ctx context.Context, id uuid.UUID, v *models.ContradictionReport) error
	CASTaskStatus(ctx context.Context, id uuid.UUID, from, to config.TaskStatus) (bool, error)
	CASTaskRejectedWithFeedback(ctx context.Context, id uuid.UUID, from config.TaskStatus, feedback string) (bool, error)
	SaveAgentLog(ctx context.Context, log *models.AgentLog) error
}

// NewHypothesizeHandler runs the hypothesis agent on a task's title. A
// parse failure still advances the task to HYPOTHESIZED with a raw-text
// fallback — hypothesis generation is a soft signal the pipeline must not
// stall on (spec.md §4.8.1, §4.8.3 generate_hypotheses).
func NewHypothesizeHandler(store TaskStore, provider llm.Provider, queue Enqueuer) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p taskPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal hypothesize payload: %w", err)
		}

		task, err := store.GetTask(ctx, p.TaskID)
		if err != nil {
			return fmt.Errorf("get task %s: %w", p.TaskID, err)
		}

		agent := agentrunner.Agent{Name: "hypothesis_generator", SystemPrompt: hypothesisPrompt, MaxTokens: defaultMaxTokens}
		raw, err := agentrunner.Run(ctx, provider, store, task.JobID, agent, task.Title)

		var set models.HypothesisSet
		if err != nil {
			set = models.HypothesisSet{Raw: fmt.Sprintf("agent error: %v", err)}
		} else if jsonErr := json.Unmarshal([]byte(raw), &set); jsonErr != nil {
			set = models.HypothesisSet{Raw: raw}
		}

		if setErr := store.SetTaskHypotheses(ctx, p.TaskID, &set); setErr != nil {
			return fmt.Errorf("set task hypotheses: %w", setErr)
		}
		if _, casErr := store.CASTaskStatus(ctx, p.TaskID, config.TaskStatusHypothesizingStarted, config.TaskStatusHypothesized); casErr != nil {
			return fmt.Errorf("cas task to hypothesized: %w", casErr)
		}

		return supervisor.Enqueue(ctx, queue, task.JobID)
	}
}
