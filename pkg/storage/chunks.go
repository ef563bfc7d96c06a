package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/deepresearch/engine/pkg/models"
)

// SaveChunks inserts a batch of chunks for a job inside a single transaction,
// the approved-text persistence step of the RAG pipeline (SPEC_FULL.md §4.3).
func (s *Store) SaveChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range chunks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO chunks (id, job_id, content, embedding, created_at)
				VALUES ($1, $2, $3, $4, $5)`,
				c.ID, c.JobID, c.Content, pgvector.NewVector(c.Embedding), c.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert chunk %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// SearchChunks returns the nearest chunks to query by cosine distance,
// optionally restricted to chunks created at or after since. It backs the
// rag_search tool (SPEC_FULL.md §4.3/§4.4).
func (s *Store) SearchChunks(ctx context.Context, jobID uuid.UUID, query []float32, since *time.Time, limit int) ([]*models.Chunk, error) {
	var rows []struct {
		ID        uuid.UUID `db:"id"`
		JobID     uuid.UUID `db:"job_id"`
		Content   string    `db:"content"`
		CreatedAt time.Time `db:"created_at"`
	}

	vec := pgvector.NewVector(query)

	var sb strings.Builder
	sb.WriteString(`SELECT id, job_id, content, created_at FROM chunks WHERE job_id = $1`)
	args := []any{jobID, vec}
	if since != nil {
		sb.WriteString(` AND created_at >= $3`)
		args = append(args, *since)
	}
	sb.WriteString(` ORDER BY embedding <=> $2 LIMIT $`)
	if since != nil {
		sb.WriteString("4")
	} else {
		sb.WriteString("3")
	}
	args = append(args, limit)

	if err := s.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	out := make([]*models.Chunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, &models.Chunk{
			ID:        r.ID,
			JobID:     r.JobID,
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
