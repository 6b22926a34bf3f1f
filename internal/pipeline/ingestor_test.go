package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattson/internal/model"
	"wattson/internal/rag"
	"wattson/internal/repository"
)

// fakeEmbedder returns a deterministic vector per input text.
type fakeEmbedder struct {
	dims  int
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dims)
		vec[0] = float32(len(texts[i]))
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

func newTestIngestor(t *testing.T, embedder *fakeEmbedder) (*Ingestor, repository.SegmentRepository, repository.DocumentRepository) {
	t.Helper()
	dir := t.TempDir()
	segments, err := repository.NewSegmentRepository(dir)
	require.NoError(t, err)
	documents, err := repository.NewDocumentRepository(dir)
	require.NoError(t, err)
	return NewIngestor(embedder, segments, documents, 1400, 220), segments, documents
}

func TestIngestIndexesAndRegisters(t *testing.T) {
	embedder := &fakeEmbedder{dims: 4}
	ingestor, segments, documents := newTestIngestor(t, embedder)

	text := strings.Repeat("a", 3000)
	report, err := ingestor.Ingest(context.Background(), "plan_velo.pdf", text)
	require.NoError(t, err)
	assert.Equal(t, "plan_velo.pdf", report.File)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 3, report.Added)
	assert.Equal(t, 1, embedder.calls, "all segments embed in one batch")

	var records []model.Segment
	require.NoError(t, segments.Scan(func(seg model.Segment) bool {
		records = append(records, seg)
		return true
	}))
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, "plan_velo.pdf", rec.Doc)
		assert.Equal(t, i, rec.ChunkIndex)
		assert.True(t, strings.HasSuffix(rec.ID, fmt.Sprintf("_%d", i)))
		assert.Len(t, rec.Embedding, 4)
	}

	docs, err := documents.List()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "plan_velo.pdf", docs[0].Name)
	assert.Equal(t, int64(3000), docs[0].Size)
}

func TestIngestEmptyDocument(t *testing.T) {
	embedder := &fakeEmbedder{dims: 4}
	ingestor, segments, documents := newTestIngestor(t, embedder)

	report, err := ingestor.Ingest(context.Background(), "empty.txt", "  \n\n  ")
	require.NoError(t, err)
	assert.Zero(t, report.Chunks)
	assert.Zero(t, report.Added)
	assert.Zero(t, embedder.calls, "nothing to embed")

	n, err := segments.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	docs, err := documents.List()
	require.NoError(t, err)
	assert.Empty(t, docs, "empty documents are not registered")
}

func TestIngestEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{dims: 4, err: errors.New("api quota exhausted")}
	ingestor, segments, documents := newTestIngestor(t, embedder)

	_, err := ingestor.Ingest(context.Background(), "plan.pdf", "contenu du plan")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rag.ErrIngestionFailed))

	// A failed batch leaves no trace.
	n, cerr := segments.Count()
	require.NoError(t, cerr)
	assert.Zero(t, n)
	docs, lerr := documents.List()
	require.NoError(t, lerr)
	assert.Empty(t, docs)
}

func TestIngestAppendFailureSkipsRegistration(t *testing.T) {
	embedder := &fakeEmbedder{dims: 4}
	dir := t.TempDir()
	documents, err := repository.NewDocumentRepository(dir)
	require.NoError(t, err)

	ingestor := NewIngestor(embedder, failingSegments{}, documents, 1400, 220)
	_, err = ingestor.Ingest(context.Background(), "plan.pdf", "contenu du plan")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rag.ErrIngestionFailed))

	docs, lerr := documents.List()
	require.NoError(t, lerr)
	assert.Empty(t, docs)
}

func TestIngestSameDocumentTwice(t *testing.T) {
	embedder := &fakeEmbedder{dims: 4}
	ingestor, segments, documents := newTestIngestor(t, embedder)

	_, err := ingestor.Ingest(context.Background(), "plan.pdf", "version initiale du plan")
	require.NoError(t, err)
	_, err = ingestor.Ingest(context.Background(), "plan.pdf", "version mise à jour du plan")
	require.NoError(t, err)

	// Segments accumulate, the registry stays deduplicated.
	n, err := segments.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	docs, err := documents.List()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

type failingSegments struct{}

func (failingSegments) Append([]model.Segment) error        { return errors.New("disk full") }
func (failingSegments) Scan(func(model.Segment) bool) error { return nil }
func (failingSegments) Count() (int, error)                 { return 0, nil }
func (failingSegments) SizeBytes() int64                    { return 0 }
