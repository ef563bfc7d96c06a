package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/rag"
)

type fakeEmbedder struct {
	failOn map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.failOn[text] {
		return nil, errors.New("embedding provider down")
	}
	return []float32{float32(len(text))}, nil
}

type fakeChunkStore struct {
	saved []*models.Chunk
}

func (f *fakeChunkStore) SaveChunks(_ context.Context, chunks []*models.Chunk) error {
	f.saved = append(f.saved, chunks...)
	return nil
}

func TestIndex_SplitsAndFiltersShortParagraphs(t *testing.T) {
	store := &fakeChunkStore{}
	embedder := &fakeEmbedder{failOn: map[string]bool{}}

	content := "too short\n\n" + repeat("a sufficiently long paragraph about cats replacing cars ", 2)
	err := rag.Index(context.Background(), store, embedder, nil, uuid.New(), content)
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
}

func TestIndex_SkipsParagraphOnEmbeddingFailureButKeepsRest(t *testing.T) {
	store := &fakeChunkStore{}
	good := strings.TrimSpace(repeat("a perfectly fine long paragraph of report content here ", 2))
	bad := strings.TrimSpace(repeat("another sufficiently long paragraph that will fail to embed ", 2))
	embedder := &fakeEmbedder{failOn: map[string]bool{bad: true}}

	content := good + "\n\n" + bad
	err := rag.Index(context.Background(), store, embedder, nil, uuid.New(), content)
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, good, store.saved[0].Content)
}

type fakeSearcher struct {
	gotSince *time.Time
	result   []*models.Chunk
}

func (f *fakeSearcher) SearchChunks(_ context.Context, _ uuid.UUID, _ []float32, since *time.Time, _ int) ([]*models.Chunk, error) {
	f.gotSince = since
	return f.result, nil
}

func TestSearch_AppliesMaxAgeFilter(t *testing.T) {
	searcher := &fakeSearcher{}
	embedder := &fakeEmbedder{failOn: map[string]bool{}}
	maxAge := 30

	_, err := rag.Search(context.Background(), searcher, embedder, uuid.New(), "query text", &maxAge, 0)
	require.NoError(t, err)
	require.NotNil(t, searcher.gotSince)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -maxAge), *searcher.gotSince, time.Minute)
}

func TestSearch_NoAgeFilterWhenNil(t *testing.T) {
	searcher := &fakeSearcher{}
	embedder := &fakeEmbedder{failOn: map[string]bool{}}

	_, err := rag.Search(context.Background(), searcher, embedder, uuid.New(), "query text", nil, 0)
	require.NoError(t, err)
	assert.Nil(t, searcher.gotSince)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
