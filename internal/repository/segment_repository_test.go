package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattson/internal/model"
)

func TestSegmentRepositoryRoundtrip(t *testing.T) {
	repo, err := NewSegmentRepository(t.TempDir())
	require.NoError(t, err)

	in := []model.Segment{
		{ID: "1700000000000_0", Doc: "plan.pdf", ChunkIndex: 0, Text: "échauffement progressif", Embedding: []float32{0.1, 0.2}},
		{ID: "1700000000000_1", Doc: "plan.pdf", ChunkIndex: 1, Text: "bloc principal", Embedding: []float32{0.3, 0.4}},
	}
	require.NoError(t, repo.Append(in))

	var out []model.Segment
	require.NoError(t, repo.Scan(func(seg model.Segment) bool {
		out = append(out, seg)
		return true
	}))
	assert.Equal(t, in, out)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Greater(t, repo.SizeBytes(), int64(0))
}

func TestSegmentRepositoryAppendEmpty(t *testing.T) {
	repo, err := NewSegmentRepository(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, repo.Append(nil))

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSegmentRepositoryInitIdempotent(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewSegmentRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Append([]model.Segment{{ID: "a", Doc: "d", Embedding: []float32{1}}}))

	// Reopening must not truncate existing records.
	repo2, err := NewSegmentRepository(dir)
	require.NoError(t, err)
	n, err := repo2.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSegmentRepositoryScanSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewSegmentRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Append([]model.Segment{{ID: "a", Doc: "d", Embedding: []float32{1}}}))

	f, err := os.OpenFile(filepath.Join(dir, indexFileName), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not valid json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, repo.Append([]model.Segment{{ID: "b", Doc: "d", Embedding: []float32{2}}}))

	var ids []string
	require.NoError(t, repo.Scan(func(seg model.Segment) bool {
		ids = append(ids, seg.ID)
		return true
	}))
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestSegmentRepositoryScanEarlyStop(t *testing.T) {
	repo, err := NewSegmentRepository(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, repo.Append([]model.Segment{
		{ID: "a", Embedding: []float32{1}},
		{ID: "b", Embedding: []float32{2}},
		{ID: "c", Embedding: []float32{3}},
	}))

	var seen int
	require.NoError(t, repo.Scan(func(model.Segment) bool {
		seen++
		return seen < 2
	}))
	assert.Equal(t, 2, seen)
}
