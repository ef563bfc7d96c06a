package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deepresearch/engine/pkg/agentrunner"
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/supervisor"
)

// NewReviewHandler runs the critic agent on a task's (title, result,
// contradictions) and sets the task to APPROVED or REJECTED with feedback
// accordingly. A critic JSON-parse failure is treated as a rejection with a
// "Parse Error" feedback, forcing a bounded research retry rather than
// stalling the pipeline (spec.md §4.8.1, §4.8.3 review).
func NewReviewHandler(store TaskStore, provider llm.Provider, queue Enqueuer) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p taskPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal review payload: %w", err)
		}

		task, err := store.GetTask(ctx, p.TaskID)
		if err != nil {
			return fmt.Errorf("get task %s: %w", p.TaskID, err)
		}

		contradictions := "none reported"
		if task.Contradictions != nil && len(task.Contradictions.Contradictions) > 0 {
			contradictions = fmt.Sprintf("%v", task.Contradictions.Contradictions)
		}
		input := fmt.Sprintf("Task: %s\n\nResult:\n%s\n\nContradictions found:\n%s", task.Title, derefOr(task.Result), contradictions)

		agent := agentrunner.Agent{Name: "critic", SystemPrompt: criticPrompt, MaxTokens: criticMaxTokens}
		raw, runErr := agentrunner.Run(ctx, provider, store, task.JobID, agent, input)

		var verdict models.CriticVerdict
		feedback := "Parse Error: critic output was not valid JSON"
		approved := false
		switch {
		case runErr != nil:
			feedback = fmt.Sprintf("System Error: %v", runErr)
		case json.Unmarshal([]byte(raw), &verdict) == nil:
			approved = verdict.Approved
			feedback = verdict.Feedback
		}

		if approved {
			if _, err := store.CASTaskStatus(ctx, p.TaskID, config.TaskStatusReviewStarted, config.TaskStatusApproved); err != nil {
				return fmt.Errorf("cas task to approved: %w", err)
			}
		} else {
			if _, err := store.CASTaskRejectedWithFeedback(ctx, p.TaskID, config.TaskStatusReviewStarted, feedback); err != nil {
				return fmt.Errorf("cas task to rejected: %w", err)
			}
		}

		return supervisor.Enqueue(ctx, queue, task.JobID)
	}
}
