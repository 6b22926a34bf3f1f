package rag

import (
	"fmt"
	"math"
	"sort"

	"wattson/internal/model"
)

// minNorm floors vector norms so that a degenerate all-zero vector scores
// zero instead of dividing by zero.
const minNorm = 1e-12

// Corpus is a restartable, lazy sequence of stored segments. Scan streams
// every segment in append order and stops early when fn returns false.
type Corpus interface {
	Scan(fn func(model.Segment) bool) error
}

// Ranker scores a query embedding against a corpus and returns the topK
// most similar segments, best first. The exact-scan implementation below is
// the shipped one; an indexed implementation can replace it behind the same
// contract without touching callers.
type Ranker interface {
	Rank(query []float32, corpus Corpus, topK int) ([]model.Hit, error)
}

// ExactScanRanker ranks by full linear scan with cosine similarity.
// O(corpus size × dimension) per query, which trades scale for simplicity
// and exactness.
type ExactScanRanker struct{}

// NewExactScanRanker creates an ExactScanRanker.
func NewExactScanRanker() *ExactScanRanker {
	return &ExactScanRanker{}
}

// Rank scans the whole corpus, scores every segment against the query and
// returns at most topK hits in descending score order. Ties keep corpus
// scan order. topK <= 0 yields no hits. A segment whose embedding dimension
// differs from the query's aborts the ranking with ErrDimensionMismatch.
func (r *ExactScanRanker) Rank(query []float32, corpus Corpus, topK int) ([]model.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	var hits []model.Hit
	var scanErr error
	err := corpus.Scan(func(seg model.Segment) bool {
		score, cerr := Cosine(query, seg.Embedding)
		if cerr != nil {
			scanErr = fmt.Errorf("segment %s (doc %q): %w", seg.ID, seg.Doc, cerr)
			return false
		}
		hits = append(hits, model.Hit{Score: score, Segment: seg})
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Cosine computes the cosine similarity of two vectors of equal dimension.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Max(math.Sqrt(na), minNorm) * math.Max(math.Sqrt(nb), minNorm)), nil
}
