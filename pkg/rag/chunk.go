// Package rag implements the retrieval-augmented-generation subsystem: it
// splits approved report text into embeddable chunks and serves
// cosine-similarity search over them (SPEC_FULL.md §4.3).
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/models"
)

// Embedder produces a vector embedding for a piece of text. Implemented by
// pkg/llm's Provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore persists and retrieves chunks. Implemented by pkg/storage.Store.
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []*models.Chunk) error
}

// Index splits report, hypothesis, and other approved task text into
// paragraph-sized chunks, embeds each one, and persists the successfully
// embedded chunks for a job. A single paragraph's embedding failure is
// logged and skipped — the rest of the batch still gets indexed (mirrors
// the original implementation's per-chunk try/except).
func Index(ctx context.Context, store ChunkStore, embedder Embedder, logger *slog.Logger, jobID uuid.UUID, content string) error {
	if logger == nil {
		logger = slog.Default()
	}

	paragraphs := splitParagraphs(content)
	chunks := make([]*models.Chunk, 0, len(paragraphs))

	for _, p := range paragraphs {
		if len(p) < models.MinChunkContentLength {
			continue
		}
		embedding, err := embedder.Embed(ctx, p)
		if err != nil {
			logger.WarnContext(ctx, "failed to embed chunk, skipping", "job_id", jobID, "error", err)
			continue
		}
		chunks = append(chunks, models.NewChunk(jobID, p, embedding))
	}

	if len(chunks) == 0 {
		return nil
	}

	if err := store.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

// splitParagraphs splits on blank lines and trims whitespace, dropping any
// resulting empty paragraphs.
func splitParagraphs(content string) []string {
	raw := strings.Split(content, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
