package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/pkg/models"
)

func newTestCache(t *testing.T) (*Cache, int64) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "indiseek.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := db.CreateRepo("acme", "https://example.com/acme.git", "/tmp/acme")
	require.NoError(t, err)

	return New(db), repo.ID
}

func completeQuery(t *testing.T, db *store.DB, repoID int64, prompt, answer string) *models.Query {
	t.Helper()
	id, err := db.CreateRunningQuery(repoID, prompt, "single")
	require.NoError(t, err)
	require.NoError(t, db.CompleteQuery(id, answer, nil, 1.0, 10, 5, 0, 0.001))
	q, err := db.GetQuery(id)
	require.NoError(t, err)
	return q
}

func TestLookup_HitsOnSimilarPrompt(t *testing.T) {
	c, repoID := newTestCache(t)
	completeQuery(t, c.DB, repoID, "where is the Run function defined", "main.go:1")

	result, err := c.Lookup(repoID, "where is the Run function defined?", false)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, "main.go:1", result.Answer)
}

func TestLookup_MissesOnDissimilarPrompt(t *testing.T) {
	c, repoID := newTestCache(t)
	completeQuery(t, c.DB, repoID, "where is the Run function defined", "main.go:1")

	result, err := c.Lookup(repoID, "what does the sync stage do", false)
	require.NoError(t, err)
	assert.False(t, result.Hit)
}

func TestLookup_ForceBypassesCache(t *testing.T) {
	c, repoID := newTestCache(t)
	completeQuery(t, c.DB, repoID, "where is the Run function defined", "main.go:1")

	result, err := c.Lookup(repoID, "where is the Run function defined", true)
	require.NoError(t, err)
	assert.False(t, result.Hit)
}

func TestLookup_InvalidatedAfterIndexMutation(t *testing.T) {
	c, repoID := newTestCache(t)
	completeQuery(t, c.DB, repoID, "where is the Run function defined", "main.go:1")

	require.NoError(t, c.DB.UpsertFileSummary(&models.FileSummary{RepoID: repoID, FilePath: "main.go", Summary: "entry point"}))

	result, err := c.Lookup(repoID, "where is the Run function defined", false)
	require.NoError(t, err)
	assert.False(t, result.Hit)
}

func TestLookup_DifferentRepoDoesNotMatch(t *testing.T) {
	c, repoID := newTestCache(t)
	completeQuery(t, c.DB, repoID, "where is the Run function defined", "main.go:1")

	otherRepo, err := c.DB.CreateRepo("other", "https://example.com/other.git", "/tmp/other")
	require.NoError(t, err)

	result, err := c.Lookup(otherRepo.ID, "where is the Run function defined", false)
	require.NoError(t, err)
	assert.False(t, result.Hit)
}
