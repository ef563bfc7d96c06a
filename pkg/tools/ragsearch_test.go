package tools_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/tools"
)

type fakeSearcher struct {
	results     []*models.Chunk
	limitCalled int
}

func (f *fakeSearcher) SearchChunks(_ context.Context, _ uuid.UUID, _ []float32, _ *time.Time, limit int) ([]*models.Chunk, error) {
	f.limitCalled = limit
	return f.results, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func TestRAGSearch_NoResultsMessage(t *testing.T) {
	tool := tools.NewRAGSearch(uuid.New(), &fakeSearcher{}, fakeEmbedder{})
	out, err := tool.Call(context.Background(), `{"query":"anything"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "No relevant information found")
}

func TestRAGSearch_FormatsAgeMetadata(t *testing.T) {
	chunk := models.NewChunk(uuid.New(), "cats do not replace cars", []float32{1})
	chunk.CreatedAt = time.Now().UTC()

	tool := tools.NewRAGSearch(uuid.New(), &fakeSearcher{results: []*models.Chunk{chunk}}, fakeEmbedder{})
	out, err := tool.Call(context.Background(), `{"query":"cats"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "today")
	assert.Contains(t, out, "cats do not replace cars")
}

func TestRAGSearch_PassesMandatedResultLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	tool := tools.NewRAGSearch(uuid.New(), searcher, fakeEmbedder{})
	_, err := tool.Call(context.Background(), `{"query":"cats"}`)
	require.NoError(t, err)
	assert.Equal(t, tools.RAGSearchLimit, searcher.limitCalled)
	assert.Equal(t, 3, searcher.limitCalled)
}

func TestRAGSearch_Definition(t *testing.T) {
	tool := tools.NewRAGSearch(uuid.New(), &fakeSearcher{}, fakeEmbedder{})
	def := tool.Definition()
	assert.Equal(t, "rag_search", def.Name)
}
