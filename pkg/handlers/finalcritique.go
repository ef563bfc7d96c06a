package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/agentrunner"
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/rag"
)

// FinalCritiqueStore is the persistence surface the final-critique handler
// needs.
type FinalCritiqueStore interface {
	SetJobReport(ctx context.Context, id uuid.UUID, report *models.ReportDraft) error
	SetJobFinalCritique(ctx context.Context, id uuid.UUID, critique *models.FinalCritique) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status config.JobStatus) error
	SaveAgentLog(ctx context.Context, log *models.AgentLog) error
	rag.ChunkStore
}

// NewFinalCritiqueHandler runs the final-critic agent over the aggregated
// draft, persists the report and critique, and completes the job (spec.md
// §4.8.3 final_critique). The report is written and the job marked
// completed unconditionally — a crashed or unparsable critic pass degrades
// the critique, never the delivered report (spec.md §9).
func NewFinalCritiqueHandler(store FinalCritiqueStore, provider llm.Provider, embedder rag.Embedder) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p finalCritiquePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("unmarshal final critique payload: %w", err)
		}
		if p.Draft == nil {
			p.Draft = models.ErrorReport("aggregate_report produced no draft")
		}

		critique := runFinalCritic(ctx, store, provider, p.JobID, p.Draft)

		if err := store.SetJobReport(ctx, p.JobID, p.Draft); err != nil {
			return fmt.Errorf("set job report: %w", err)
		}
		if err := store.SetJobFinalCritique(ctx, p.JobID, critique); err != nil {
			return fmt.Errorf("set job final critique: %w", err)
		}
		if err := store.UpdateJobStatus(ctx, p.JobID, config.JobStatusCompleted); err != nil {
			return fmt.Errorf("update job status to completed: %w", err)
		}

		indexDraftBestEffort(ctx, store, embedder, p.JobID, p.Draft)

		return nil
	}
}

// runFinalCritic runs the final critic agent and parses its verdict. Any
// failure — agent error or JSON parse failure — degrades to an approved
// critique rather than blocking delivery of the already-aggregated report.
func runFinalCritic(ctx context.Context, store FinalCritiqueStore, provider llm.Provider, jobID uuid.UUID, draft *models.ReportDraft) *models.FinalCritique {
	content := draft.Content
	if !draft.IsPlainText() {
		if raw, err := json.Marshal(draft); err == nil {
			content = string(raw)
		}
	}

	agent := agentrunner.Agent{Name: "final_critic", SystemPrompt: finalCriticPrompt, MaxTokens: criticMaxTokens}
	raw, err := agentrunner.Run(ctx, provider, store, jobID, agent, content)
	if err != nil {
		return &models.FinalCritique{Approved: true, Critique: fmt.Sprintf("final critic unavailable, report delivered as-is: %v", err)}
	}

	var critique models.FinalCritique
	if jsonErr := json.Unmarshal([]byte(raw), &critique); jsonErr != nil {
		return &models.FinalCritique{Approved: true, Critique: raw}
	}
	return &critique
}

// indexDraftBestEffort chunks and embeds the final report for future
// rag_search hits against this job. Failures are logged and swallowed — RAG
// indexing is an enrichment, never a condition for job completion.
func indexDraftBestEffort(ctx context.Context, store rag.ChunkStore, embedder rag.Embedder, jobID uuid.UUID, draft *models.ReportDraft) {
	content := flattenReportForIndex(draft)
	if content == "" {
		return
	}
	if err := rag.Index(ctx, store, embedder, slog.Default(), jobID, content); err != nil {
		slog.Default().WarnContext(ctx, "failed to index final report", "job_id", jobID, "error", err)
	}
}

// flattenReportForIndex renders a structured report's summary, key findings
// and every details section into paragraphs for chunking, mirroring
// original_source/src/db/vector.py:41-55 ("Section: {section}\n{content}").
// The plain_text fallback shape indexes its content verbatim.
func flattenReportForIndex(draft *models.ReportDraft) string {
	if draft.IsPlainText() || (draft.Summary == "" && len(draft.KeyFindings) == 0 && len(draft.Details) == 0) {
		return draft.Content
	}

	var b strings.Builder
	if draft.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", draft.Summary)
	}
	for _, finding := range draft.KeyFindings {
		fmt.Fprintf(&b, "%s\n\n", finding)
	}

	sections := make([]string, 0, len(draft.Details))
	for section := range draft.Details {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	for _, section := range sections {
		fmt.Fprintf(&b, "Section: %s\n%v\n\n", section, draft.Details[section])
	}

	return strings.TrimSpace(b.String())
}
