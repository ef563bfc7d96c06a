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

// NewScoreHandler runs the evidence-scoring agent on a task's (title,
// result) pair. Like hypothesis generation, a parse failure still advances
// the task (spec.md §4.8.1, §4.8.3 score_evidence).
func NewScoreHandler(store TaskStore, provider llm.Provider, queue Enqueuer) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p taskPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal score payload: %w", err)
		}

		task, err := store.GetTask(ctx, p.TaskID)
		if err != nil {
			return fmt.Errorf("get task %s: %w", p.TaskID, err)
		}

		input := fmt.Sprintf("Task: %s\n\nFindings:\n%s", task.Title, derefOr(task.Result))

		agent := agentrunner.Agent{Name: "evidence_scorer", SystemPrompt: evidencePrompt, MaxTokens: defaultMaxTokens}
		raw, err := agentrunner.Run(ctx, provider, store, task.JobID, agent, input)

		var rating models.EvidenceRating
		if err != nil {
			rating = models.EvidenceRating{Raw: fmt.Sprintf("agent error: %v", err)}
		} else if jsonErr := json.Unmarshal([]byte(raw), &rating); jsonErr != nil {
			rating = models.EvidenceRating{Raw: raw}
		}

		if err := store.SetTaskEvidenceRating(ctx, p.TaskID, &rating); err != nil {
			return fmt.Errorf("set task evidence rating: %w", err)
		}
		if _, err := store.CASTaskStatus(ctx, p.TaskID, config.TaskStatusScoringStarted, config.TaskStatusScored); err != nil {
			return fmt.Errorf("cas task to scored: %w", err)
		}

		return supervisor.Enqueue(ctx, queue, task.JobID)
	}
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
