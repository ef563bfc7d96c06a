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
	"github.com/deepresearch/engine/pkg/tools"
)

// NewContradictHandler runs the contradiction-finding agent, armed with
// web_search, on a task's (title, result) pair. A parse failure still
// advances the task (spec.md §4.8.1, §4.8.3 find_contradictions).
func NewContradictHandler(store TaskStore, provider llm.Provider, queue Enqueuer, webSearchKey string) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p taskPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal contradict payload: %w", err)
		}

		task, err := store.GetTask(ctx, p.TaskID)
		if err != nil {
			return fmt.Errorf("get task %s: %w", p.TaskID, err)
		}

		input := fmt.Sprintf("Task: %s\n\nFindings:\n%s", task.Title, derefOr(task.Result))

		agent := agentrunner.Agent{
			Name:         "contradiction_seeker",
			SystemPrompt: contradictionPrompt,
			MaxTokens:    defaultMaxTokens,
			Tools:        []tools.Tool{tools.NewWebSearch(webSearchKey, provider)},
		}
		raw, err := agentrunner.Run(ctx, provider, store, task.JobID, agent, input)

		var report models.ContradictionReport
		if err != nil {
			report = models.ContradictionReport{Raw: fmt.Sprintf("agent error: %v", err)}
		} else if jsonErr := json.Unmarshal([]byte(raw), &report); jsonErr != nil {
			report = models.ContradictionReport{Raw: raw}
		}

		if err := store.SetTaskContradictions(ctx, p.TaskID, &report); err != nil {
			return fmt.Errorf("set task contradictions: %w", err)
		}
		if _, err := store.CASTaskStatus(ctx, p.TaskID, config.TaskStatusContradictingStarted, config.TaskStatusContradicted); err != nil {
			return fmt.Errorf("cas task to contradicted: %w", err)
		}

		return supervisor.Enqueue(ctx, queue, task.JobID)
	}
}
