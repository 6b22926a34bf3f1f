package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattson/internal/model"
	"wattson/internal/rag"
	"wattson/internal/repository"
)

// mapEmbedder returns canned vectors keyed by input text.
type mapEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (m *mapEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := m.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no canned vector for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mapEmbedder) Dimensions() int { return 2 }

func newTestRetrieval(t *testing.T, embedder *mapEmbedder) (RetrievalService, repository.SegmentRepository, repository.DocumentRepository) {
	t.Helper()
	dir := t.TempDir()
	segments, err := repository.NewSegmentRepository(dir)
	require.NoError(t, err)
	documents, err := repository.NewDocumentRepository(dir)
	require.NoError(t, err)
	svc := NewRetrievalService(embedder, segments, documents, rag.NewExactScanRanker(), dir)
	return svc, segments, documents
}

func TestQueryRanksMostSimilarFirst(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"comment gérer une sortie longue": {1, 0},
	}}
	svc, segments, _ := newTestRetrieval(t, embedder)

	require.NoError(t, segments.Append([]model.Segment{
		{ID: "1_0", Doc: "nutrition.txt", ChunkIndex: 0, Text: "hydratation", Embedding: []float32{0, 1}},
		{ID: "1_1", Doc: "sorties.txt", ChunkIndex: 0, Text: "gestion de l'effort", Embedding: []float32{1, 0}},
		{ID: "1_2", Doc: "sorties.txt", ChunkIndex: 1, Text: "alimentation en course", Embedding: []float32{1, 1}},
	}))

	result, err := svc.Query(context.Background(), "comment gérer une sortie longue", 2)
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "1_1", result.Hits[0].ID)
	assert.Equal(t, "1_2", result.Hits[1].ID)
	assert.Equal(t, []string{"sorties.txt"}, result.Sources)
}

func TestQueryContextFormat(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	svc, segments, _ := newTestRetrieval(t, embedder)

	require.NoError(t, segments.Append([]model.Segment{
		{ID: "1_0", Doc: "plan.pdf", ChunkIndex: 0, Text: "premier extrait", Embedding: []float32{1, 0}},
		{ID: "1_1", Doc: "plan.pdf", ChunkIndex: 3, Text: "second extrait", Embedding: []float32{1, 1}},
	}))

	result, err := svc.Query(context.Background(), "q", 5)
	require.NoError(t, err)

	want := "【plan.pdf · #0 · 1.000】\npremier extrait" +
		"\n---\n" +
		fmt.Sprintf("【plan.pdf · #3 · %.3f】\nsecond extrait", result.Hits[1].Score)
	assert.Equal(t, want, result.Context)
}

func TestQuerySourcesKeepFirstSeenOrder(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	svc, segments, _ := newTestRetrieval(t, embedder)

	require.NoError(t, segments.Append([]model.Segment{
		{ID: "1_0", Doc: "b.txt", ChunkIndex: 0, Text: "x", Embedding: []float32{1, 0}},
		{ID: "1_1", Doc: "a.txt", ChunkIndex: 0, Text: "y", Embedding: []float32{0.9, 0.1}},
		{ID: "1_2", Doc: "b.txt", ChunkIndex: 1, Text: "z", Embedding: []float32{0.8, 0.2}},
	}))

	result, err := svc.Query(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "a.txt"}, result.Sources)
}

func TestQueryBlankText(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{}}
	svc, _, _ := newTestRetrieval(t, embedder)

	result, err := svc.Query(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Context)
}

func TestQueryEmptyIndex(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	svc, _, _ := newTestRetrieval(t, embedder)

	result, err := svc.Query(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	assert.Empty(t, result.Sources)
}

func TestQueryEmbeddingFailure(t *testing.T) {
	embedder := &mapEmbedder{err: errors.New("api down")}
	svc, _, _ := newTestRetrieval(t, embedder)

	_, err := svc.Query(context.Background(), "q", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rag.ErrRetrievalFailed))
}

func TestQueryMixedDimensionsDegradesToEmpty(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	svc, segments, _ := newTestRetrieval(t, embedder)

	require.NoError(t, segments.Append([]model.Segment{
		{ID: "1_0", Doc: "d", ChunkIndex: 0, Text: "x", Embedding: []float32{1, 0, 0}},
	}))

	result, err := svc.Query(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestStats(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{}}
	svc, segments, documents := newTestRetrieval(t, embedder)

	// Large enough that SizeMB does not round down to zero.
	bulk := strings.Repeat("x", 8000)
	require.NoError(t, segments.Append([]model.Segment{
		{ID: "1_0", Doc: "plan.pdf", ChunkIndex: 0, Text: bulk, Embedding: []float32{1, 0}},
		{ID: "1_1", Doc: "plan.pdf", ChunkIndex: 1, Text: bulk, Embedding: []float32{0, 1}},
	}))
	require.NoError(t, documents.Register("plan.pdf", 3000, time.Now()))

	stats := svc.Stats()
	assert.Equal(t, 1, stats.DocsCount)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, []string{"plan.pdf"}, stats.DocNames)
	assert.Greater(t, stats.SizeMB, 0.0)
}

func TestStatsCapsDocNames(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{}}
	svc, _, documents := newTestRetrieval(t, embedder)

	for i := 0; i < 25; i++ {
		require.NoError(t, documents.Register(fmt.Sprintf("doc-%02d.txt", i), 10, time.Now()))
	}

	stats := svc.Stats()
	assert.Equal(t, 25, stats.DocsCount)
	assert.Len(t, stats.DocNames, 20)
	assert.Equal(t, "doc-00.txt", stats.DocNames[0])
}
