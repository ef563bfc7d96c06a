package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deepresearch/engine/pkg/agentrunner"
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/supervisor"
)

// PlanStore is the persistence surface the plan handler needs.
type PlanStore interface {
	CreateTasks(ctx context.Context, tasks []*models.Task) error
	SaveAgentLog(ctx context.Context, log *models.AgentLog) error
}

// NewPlanHandler runs the planner agent on a job's enriched description,
// parses a JSON array of subquestion titles into one PENDING Task per entry,
// and re-enqueues the supervisor to pick them up (spec.md §4.8.3 plan). On
// parse failure, a single Task titled with the full description is created
// instead — the pipeline never stalls on an unparsable plan.
func NewPlanHandler(store PlanStore, provider llm.Provider, queue Enqueuer) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p planPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal plan payload: %w", err)
		}

		agent := agentrunner.Agent{Name: "planner", SystemPrompt: plannerPrompt, MaxTokens: defaultMaxTokens}
		raw, err := agentrunner.Run(ctx, provider, store, p.JobID, agent, p.Description)
		if err != nil {
			return fmt.Errorf("run planner agent: %w", err)
		}

		titles, err := parsePlanTitles(raw)
		if err != nil || len(titles) == 0 {
			titles = []string{p.Description}
		}

		tasks := make([]*models.Task, 0, len(titles))
		for _, title := range titles {
			tasks = append(tasks, models.NewTask(p.JobID, title))
		}
		if err := store.CreateTasks(ctx, tasks); err != nil {
			return fmt.Errorf("create tasks: %w", err)
		}

		return supervisor.Enqueue(ctx, queue, p.JobID)
	}
}

func parsePlanTitles(raw string) ([]string, error) {
	var titles []string
	if err := json.Unmarshal([]byte(raw), &titles); err == nil {
		return titles, nil
	}
	var list models.PlanTaskList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list.Titles, nil
}
