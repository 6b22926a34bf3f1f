package rag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattson/internal/model"
)

type sliceCorpus []model.Segment

func (c sliceCorpus) Scan(fn func(model.Segment) bool) error {
	for _, seg := range c {
		if !fn(seg) {
			return nil
		}
	}
	return nil
}

type failingCorpus struct{ err error }

func (c failingCorpus) Scan(fn func(model.Segment) bool) error { return c.err }

func TestCosine(t *testing.T) {
	t.Run("identical vectors score one", func(t *testing.T) {
		score, err := Cosine([]float32{1, 2, 3}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, score, 1e-9)
	})

	t.Run("orthogonal vectors score zero", func(t *testing.T) {
		score, err := Cosine([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, score, 1e-9)
	})

	t.Run("opposite vectors score minus one", func(t *testing.T) {
		score, err := Cosine([]float32{1, 1}, []float32{-1, -1})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, score, 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := []float32{0.3, -0.2, 0.9}
		b := []float32{-0.1, 0.5, 0.4}
		ab, err := Cosine(a, b)
		require.NoError(t, err)
		ba, err := Cosine(b, a)
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
	})

	t.Run("zero vector scores zero", func(t *testing.T) {
		score, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 0.0, score)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDimensionMismatch))
	})
}

func TestExactScanRankerOrdersByScore(t *testing.T) {
	corpus := sliceCorpus{
		{ID: "a", Doc: "doc1", Embedding: []float32{0, 1}},
		{ID: "b", Doc: "doc1", Embedding: []float32{1, 0}},
		{ID: "c", Doc: "doc2", Embedding: []float32{1, 1}},
	}

	hits, err := NewExactScanRanker().Rank([]float32{1, 0}, corpus, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.Equal(t, "a", hits[2].ID)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
}

func TestExactScanRankerTruncatesToTopK(t *testing.T) {
	corpus := sliceCorpus{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{0.9, 0.1}},
		{ID: "c", Embedding: []float32{0.5, 0.5}},
	}

	hits, err := NewExactScanRanker().Rank([]float32{1, 0}, corpus, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
}

func TestExactScanRankerNonPositiveTopK(t *testing.T) {
	corpus := sliceCorpus{{ID: "a", Embedding: []float32{1, 0}}}

	for _, topK := range []int{0, -1} {
		hits, err := NewExactScanRanker().Rank([]float32{1, 0}, corpus, topK)
		require.NoError(t, err)
		assert.Empty(t, hits)
	}
}

func TestExactScanRankerStableTies(t *testing.T) {
	// Equal scores keep append order.
	corpus := sliceCorpus{
		{ID: "first", Embedding: []float32{2, 0}},
		{ID: "second", Embedding: []float32{3, 0}},
		{ID: "third", Embedding: []float32{1, 0}},
	}

	hits, err := NewExactScanRanker().Rank([]float32{1, 0}, corpus, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "first", hits[0].ID)
	assert.Equal(t, "second", hits[1].ID)
	assert.Equal(t, "third", hits[2].ID)
}

func TestExactScanRankerDimensionMismatch(t *testing.T) {
	corpus := sliceCorpus{
		{ID: "ok", Doc: "doc1", Embedding: []float32{1, 0}},
		{ID: "bad", Doc: "doc1", Embedding: []float32{1, 0, 0}},
	}

	_, err := NewExactScanRanker().Rank([]float32{1, 0}, corpus, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.Contains(t, err.Error(), "bad")
}

func TestExactScanRankerCorpusError(t *testing.T) {
	scanErr := errors.New("disk gone")
	_, err := NewExactScanRanker().Rank([]float32{1, 0}, failingCorpus{err: scanErr}, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scanErr))
}

func TestExactScanRankerEmptyCorpus(t *testing.T) {
	hits, err := NewExactScanRanker().Rank([]float32{1, 0}, sliceCorpus{}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
