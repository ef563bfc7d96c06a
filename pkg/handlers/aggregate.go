package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/agentrunner"
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/models"
)

// AggregateStore is the persistence surface the aggregate handler needs.
type AggregateStore interface {
	ListTasksByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Task, error)
	SaveAgentLog(ctx context.Context, log *models.AgentLog) error
	SetJobReport(ctx context.Context, id uuid.UUID, report *models.ReportDraft) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status config.JobStatus) error
}

// aggregatePayload is the body the supervisor enqueues onto
// KindAggregateReport (pkg/supervisor.KindAggregateReport); the field shape
// must match pkg/supervisor's jobPayload.
type aggregatePayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// finalCritiquePayload carries the aggregated draft forward to the
// final-critique phase.
type finalCritiquePayload struct {
	JobID uuid.UUID          `json:"job_id"`
	Draft *models.ReportDraft `json:"draft"`
}

// NewAggregateHandler runs the reporter agent over every approved task of a
// job, in deterministic creation order, and chains into final_critique
// (spec.md §4.8.3 aggregate_report). A reporter parse failure falls back to
// a plain_text draft rather than failing the job (spec.md §9); a reporter
// run failure stores the error report shape, marks the job failed, and
// skips final_critique.
func NewAggregateHandler(store AggregateStore, provider llm.Provider, queue Enqueuer) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p aggregatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal aggregate payload: %w", err)
		}

		tasks, err := store.ListTasksByJob(ctx, p.JobID)
		if err != nil {
			return fmt.Errorf("list tasks for job %s: %w", p.JobID, err)
		}

		input := renderTasksForReport(tasks)

		agent := agentrunner.Agent{Name: "reporter", SystemPrompt: reporterPrompt, MaxTokens: reportMaxTokens}
		raw, err := agentrunner.Run(ctx, provider, store, p.JobID, agent, input)

		if err != nil {
			if saveErr := store.SetJobReport(ctx, p.JobID, models.ErrorReport(err.Error())); saveErr != nil {
				return fmt.Errorf("save error report for job %s: %w", p.JobID, saveErr)
			}
			if statusErr := store.UpdateJobStatus(ctx, p.JobID, config.JobStatusFailed); statusErr != nil {
				return fmt.Errorf("mark job %s failed: %w", p.JobID, statusErr)
			}
			return nil
		}

		var draft *models.ReportDraft
		if parsed, parseErr := models.ParseReportDraft(raw); parseErr == nil {
			draft = parsed
		} else {
			draft = models.PlainTextReport(raw)
		}

		return queue.Enqueue(ctx, KindFinalCritique, finalCritiquePayload{JobID: p.JobID, Draft: draft})
	}
}

// renderTasksForReport formats every task's title, hypotheses, result and
// evidence/contradiction signals in creation order, the same order
// ListTasksByJob returns them in, so a given job's report input is stable
// across supervisor re-entries.
func renderTasksForReport(tasks []*models.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		if !t.Status.IsTerminalSuccess() {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", t.Title)
		if t.Hypotheses != nil {
			if len(t.Hypotheses.Items) > 0 {
				fmt.Fprintf(&b, "Hypotheses: %s\n\n", strings.Join(t.Hypotheses.Items, "; "))
			} else if t.Hypotheses.Raw != "" {
				fmt.Fprintf(&b, "Hypotheses: %s\n\n", t.Hypotheses.Raw)
			}
		}
		if t.Result != nil {
			fmt.Fprintf(&b, "%s\n\n", *t.Result)
		}
		if t.EvidenceRating != nil && t.EvidenceRating.Rationale != "" {
			fmt.Fprintf(&b, "Evidence assessment: %s\n\n", t.EvidenceRating.Rationale)
		}
		if t.Contradictions != nil && len(t.Contradictions.Contradictions) > 0 {
			fmt.Fprintf(&b, "Contradictions noted: %s\n\n", strings.Join(t.Contradictions.Contradictions, "; "))
		}
	}
	return b.String()
}
