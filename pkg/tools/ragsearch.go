package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/llm"
	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/rag"
)

// RAGSearchLimit is the result count the rag_search tool asks C3 for,
// matching original_source/src/tools/rag_tool.py:32's hardcoded limit=3 —
// deliberately smaller than rag.DefaultSearchLimit, which is a different
// caller's default.
const RAGSearchLimit = 3

// RAGSearch calls into the internal vector store (SPEC_FULL.md §4.4,
// grounded on the original implementation's rag_search tool), formatting
// each result with its retrieval-age metadata.
type RAGSearch struct {
	jobID    uuid.UUID
	store    rag.Searcher
	embedder rag.Embedder
}

// NewRAGSearch constructs a RAGSearch tool scoped to a single job.
func NewRAGSearch(jobID uuid.UUID, store rag.Searcher, embedder rag.Embedder) *RAGSearch {
	return &RAGSearch{jobID: jobID, store: store, embedder: embedder}
}

// Definition implements Tool.
func (r *RAGSearch) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "rag_search",
		Description: "Search the internal research database for relevant information already gathered for this job.",
		ParametersSchema: `{
			"type": "object",
			"properties": {
				"query": {"type": "string"},
				"max_age_days": {"type": "integer"}
			},
			"required": ["query"]
		}`,
	}
}

type ragSearchArgs struct {
	Query      string `json:"query"`
	MaxAgeDays *int   `json:"max_age_days"`
}

// Call implements Tool.
func (r *RAGSearch) Call(ctx context.Context, argumentsJSON string) (string, error) {
	var args ragSearchArgs
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", fmt.Errorf("parse rag_search arguments: %w", err)
	}

	chunks, err := rag.Search(ctx, r.store, r.embedder, r.jobID, args.Query, args.MaxAgeDays, RAGSearchLimit)
	if err != nil {
		return "", err
	}

	if len(chunks) == 0 {
		ageNote := ""
		if args.MaxAgeDays != nil {
			ageNote = fmt.Sprintf(" (within last %d days)", *args.MaxAgeDays)
		}
		return fmt.Sprintf("[RAG] No relevant information found in the internal database%s.", ageNote), nil
	}

	return formatRAGResults(chunks), nil
}

func formatRAGResults(chunks []*models.Chunk) string {
	now := time.Now().UTC()
	var parts []string
	for i, c := range chunks {
		ageDays := int(now.Sub(c.CreatedAt).Hours() / 24)
		var ageText string
		switch ageDays {
		case 0:
			ageText = "today"
		case 1:
			ageText = "1 day ago"
		default:
			ageText = fmt.Sprintf("%d days ago", ageDays)
		}
		header := fmt.Sprintf("--- Result %d (Retrieved: %s, %s) ---", i+1, c.CreatedAt.Format("2006-01-02"), ageText)
		parts = append(parts, fmt.Sprintf("%s\nContent: %s", header, c.Content))
	}
	return "[RAG] Found the following relevant info:\n\n" + strings.Join(parts, "\n\n")
}
