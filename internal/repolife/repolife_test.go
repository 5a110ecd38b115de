package repolife

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/parse"
	"github.com/breeze4/indiseek/internal/pipeline"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/vectorstore"
)

// runRawGit runs git directly against dir, bypassing repolife's own
// runGit, to build fixture repositories for these tests.
func runRawGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

// newFixtureOrigin creates a local bare-equivalent working repo with one
// commit, usable as a clone source via a plain filesystem path.
func newFixtureOrigin(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runRawGit(t, dir, "init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	runRawGit(t, dir, "add", ".")
	runRawGit(t, dir, "commit", "-m", "initial")
	return dir
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dataDir := t.TempDir()
	db, err := store.Open(filepath.Join(dataDir, "indiseek.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewManager(db, vectorstore.NewManager(dataDir), lexstore.NewManager(dataDir), t.TempDir())
}

func TestAddRepo_ClonesAndRecordsHead(t *testing.T) {
	origin := newFixtureOrigin(t)
	m := newTestManager(t)

	repo, err := m.AddRepo(context.Background(), "fixture", origin)
	require.NoError(t, err)

	assert.NotEmpty(t, repo.CurrentCommitSHA)
	assert.Equal(t, -1, repo.CommitsBehind)
	assert.DirExists(t, repo.LocalPath)
	assert.FileExists(t, filepath.Join(repo.LocalPath, "main.go"))
}

func TestCheckFreshness_NeverIndexed(t *testing.T) {
	origin := newFixtureOrigin(t)
	m := newTestManager(t)

	repo, err := m.AddRepo(context.Background(), "fixture", origin)
	require.NoError(t, err)

	fresh, err := m.CheckFreshness(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, FreshnessNotIndexed, fresh.Status)
	assert.Equal(t, -1, fresh.CommitsBehind)
}

func TestCheckFreshness_StaleAfterNewCommit(t *testing.T) {
	origin := newFixtureOrigin(t)
	m := newTestManager(t)

	repo, err := m.AddRepo(context.Background(), "fixture", origin)
	require.NoError(t, err)
	require.NoError(t, m.DB.MarkRepoIndexed(repo.ID, repo.CurrentCommitSHA))

	require.NoError(t, os.WriteFile(filepath.Join(origin, "extra.go"), []byte("package main\n"), 0o644))
	runRawGit(t, origin, "add", ".")
	runRawGit(t, origin, "commit", "-m", "second")

	fresh, err := m.CheckFreshness(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, FreshnessStale, fresh.Status)
	assert.Equal(t, 1, fresh.CommitsBehind)
	assert.Contains(t, fresh.ChangedFiles, "extra.go")
}

func TestSync_IndexesChangedFileAndRemovesDeleted(t *testing.T) {
	origin := newFixtureOrigin(t)
	m := newTestManager(t)

	repo, err := m.AddRepo(context.Background(), "fixture", origin)
	require.NoError(t, err)

	env := &pipeline.Env{
		DB:        m.DB,
		Vectors:   m.Vectors,
		Lexical:   m.Lexical,
		Chunker:   parse.NewChunker(),
		Embedder:  provider.NewStubProvider(8),
		Generator: provider.NewStubProvider(8),
		RepoID:    repo.ID,
		RepoPath:  repo.LocalPath,
		EmbedDims: 8,
	}

	counts, err := m.Sync(context.Background(), repo.ID, SyncOptions{Env: env})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["changed_files"])

	chunks, err := m.DB.AllChunks(repo.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)

	require.NoError(t, os.Remove(filepath.Join(origin, "main.go")))
	runRawGit(t, origin, "add", "-A")
	runRawGit(t, origin, "commit", "-m", "remove main")

	counts, err = m.Sync(context.Background(), repo.ID, SyncOptions{Env: env})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["deleted_files"])

	chunks, err = m.DB.AllChunks(repo.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	updated, err := m.DB.GetRepo(repo.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CommitsBehind)
	assert.NotEmpty(t, updated.IndexedCommitSHA)
}

func TestDeleteRepo_RemovesCloneAndRows(t *testing.T) {
	origin := newFixtureOrigin(t)
	m := newTestManager(t)

	repo, err := m.AddRepo(context.Background(), "fixture", origin)
	require.NoError(t, err)

	require.NoError(t, m.DeleteRepo(repo.ID))

	_, err = os.Stat(repo.LocalPath)
	assert.True(t, os.IsNotExist(err))

	got, err := m.DB.GetRepo(repo.ID)
	require.NoError(t, err)
	assert.Equal(t, "deleted", string(got.Status))
}
