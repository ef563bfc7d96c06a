package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deepresearch/engine/pkg/agentrunner"
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/rag"
	"github.com/deepresearch/engine/pkg/supervisor"
	"github.com/deepresearch/engine/pkg/tools"
)

// NewResearchHandler runs the researcher agent, armed with web_search and
// rag_search, to answer a task's title (optionally carrying prior feedback
// and/or hypotheses into the prompt). A failure here writes REJECTED with a
// system-error feedback and re-triggers the supervisor rather than
// propagating — research failure is recoverable via retry (spec.md §4.8.1,
// §4.8.3 perform_research).
func NewResearchHandler(store TaskStore, provider llm.Provider, queue Enqueuer, ragStore rag.Searcher, embedder rag.Embedder, webSearchKey string) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p taskPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal research payload: %w", err)
		}

		task, err := store.GetTask(ctx, p.TaskID)
		if err != nil {
			return fmt.Errorf("get task %s: %w", p.TaskID, err)
		}

		prompt := task.Title
		if task.Feedback != nil && *task.Feedback != "" {
			prompt = fmt.Sprintf("Task: %s\n\nPREVIOUS FEEDBACK (must be addressed): %s\n\nPlease improve the research based on this feedback.", task.Title, *task.Feedback)
		}
		if task.Hypotheses != nil && len(task.Hypotheses.Items) > 0 {
			prompt += "\n\nCandidate hypotheses to investigate:\n"
			for _, h := range task.Hypotheses.Items {
				prompt += fmt.Sprintf("- %s\n", h)
			}
		}

		agent := agentrunner.Agent{
			Name:         "researcher",
			SystemPrompt: researcherPrompt,
			MaxTokens:    researchMaxTokens,
			Tools: []tools.Tool{
				tools.NewWebSearch(webSearchKey, provider),
				tools.NewRAGSearch(task.JobID, ragStore, embedder),
			},
		}

		result, err := agentrunner.Run(ctx, provider, store, task.JobID, agent, prompt)
		if err != nil {
			feedback := fmt.Sprintf("System Error: %v", err)
			if _, casErr := store.CASTaskRejectedWithFeedback(ctx, p.TaskID, task.Status, feedback); casErr != nil {
				return fmt.Errorf("mark task rejected after research failure: %w", casErr)
			}
			return supervisor.Enqueue(ctx, queue, task.JobID)
		}

		if err := store.SetTaskResult(ctx, p.TaskID, result); err != nil {
			return fmt.Errorf("set task result: %w", err)
		}
		// task.Status is RESEARCHING_STARTED on the normal path or
		// RESEARCHING_RETRY when re-entering after a review rejection
		// (spec.md §4.8.1) — either is valid as the CAS precondition here.
		if _, err := store.CASTaskStatus(ctx, p.TaskID, task.Status, config.TaskStatusResearched); err != nil {
			return fmt.Errorf("cas task to researched: %w", err)
		}

		return supervisor.Enqueue(ctx, queue, task.JobID)
	}
}
