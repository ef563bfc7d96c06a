package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deepresearch/engine/pkg/models"
)

// DefaultSearchLimit mirrors the original implementation's default result count.
const DefaultSearchLimit = 5

// Searcher retrieves the nearest chunks to a query embedding. Implemented
// by pkg/storage.Store.
type Searcher interface {
	SearchChunks(ctx context.Context, jobID uuid.UUID, query []float32, since *time.Time, limit int) ([]*models.Chunk, error)
}

// Search embeds query text and retrieves the most similar previously
// indexed chunks for a job, optionally restricted to chunks created within
// the last maxAgeDays days.
func Search(ctx context.Context, store Searcher, embedder Embedder, jobID uuid.UUID, query string, maxAgeDays *int, limit int) ([]*models.Chunk, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var since *time.Time
	if maxAgeDays != nil {
		cutoff := time.Now().UTC().AddDate(0, 0, -*maxAgeDays)
		since = &cutoff
	}

	chunks, err := store.SearchChunks(ctx, jobID, embedding, since, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return chunks, nil
}
