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
)

// EnrichStore is the persistence surface the enrich handler needs.
type EnrichStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	SetJobDescription(ctx context.Context, id uuid.UUID, description string) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status config.JobStatus) error
	SaveAgentLog(ctx context.Context, log *models.AgentLog) error
}

type enrichPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// planPayload is the body enqueued for the plan handler.
type planPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	Description string    `json:"description"`
}

// NewEnrichHandler runs the enricher agent on a job's idea, persists the
// description, flips the job into processing, and chains into plan (spec.md
// §4.8.3 enrich).
func NewEnrichHandler(store EnrichStore, provider llm.Provider, queue Enqueuer) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p enrichPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal enrich payload: %w", err)
		}

		job, err := store.GetJob(ctx, p.JobID)
		if err != nil {
			return fmt.Errorf("get job %s: %w", p.JobID, err)
		}

		agent := agentrunner.Agent{Name: "enricher", SystemPrompt: enricherPrompt, MaxTokens: defaultMaxTokens}
		description, err := agentrunner.Run(ctx, provider, store, p.JobID, agent, job.Idea)
		if err != nil {
			return fmt.Errorf("run enricher agent: %w", err)
		}

		if err := store.SetJobDescription(ctx, p.JobID, description); err != nil {
			return fmt.Errorf("set job description: %w", err)
		}
		if err := store.UpdateJobStatus(ctx, p.JobID, config.JobStatusProcessing); err != nil {
			return fmt.Errorf("update job status: %w", err)
		}

		return queue.Enqueue(ctx, KindPlan, planPayload{JobID: p.JobID, Description: description})
	}
}
