package models

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDimension is fixed by contract with the embedding model
// (SPEC_FULL.md §4.3).
const EmbeddingDimension = 1024

// MinChunkContentLength is the minimum paragraph length kept by save_chunks
// (SPEC_FULL.md §4.3 / §9 — a configurable-but-defaulted magic number).
const MinChunkContentLength = 50

// Chunk is a paragraph-sized unit of approved report text with its
// embedding, used by the RAG subsystem (SPEC_FULL.md §3).
type Chunk struct {
	ID        uuid.UUID `db:"id" json:"id"`
	JobID     uuid.UUID `db:"job_id" json:"job_id"`
	Content   string    `db:"content" json:"content"`
	Embedding []float32 `db:"embedding" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewChunk constructs a Chunk ready for insertion.
func NewChunk(jobID uuid.UUID, content string, embedding []float32) *Chunk {
	return &Chunk{
		ID:        uuid.New(),
		JobID:     jobID,
		Content:   content,
		Embedding: embedding,
		CreatedAt: timeNow(),
	}
}
