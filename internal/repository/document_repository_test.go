package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepositoryRegisterAndList(t *testing.T) {
	repo, err := NewDocumentRepository(t.TempDir())
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, repo.Register("plan_velo.pdf", 3000, now))
	require.NoError(t, repo.Register("nutrition.txt", 1200, now.Add(time.Minute)))

	docs, err := repo.List()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "plan_velo.pdf", docs[0].Name)
	assert.Equal(t, int64(3000), docs[0].Size)
	assert.Equal(t, "nutrition.txt", docs[1].Name)
}

func TestDocumentRepositoryRegisterIdempotent(t *testing.T) {
	repo, err := NewDocumentRepository(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.Register("plan.pdf", 100, now))
	require.NoError(t, repo.Register("plan.pdf", 999, now.Add(time.Hour)))

	docs, err := repo.List()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	// The first registration wins.
	assert.Equal(t, int64(100), docs[0].Size)
}

func TestDocumentRepositoryInitPreservesExisting(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewDocumentRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Register("plan.pdf", 100, time.Now()))

	repo2, err := NewDocumentRepository(dir)
	require.NoError(t, err)
	docs, err := repo2.List()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDocumentRepositoryCorruptRegistry(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewDocumentRepository(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, registryFileName), []byte("{broken"), 0o644))

	docs, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, docs)

	// Registering over a corrupt registry starts a fresh list.
	require.NoError(t, repo.Register("plan.pdf", 10, time.Now()))
	docs, err = repo.List()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
