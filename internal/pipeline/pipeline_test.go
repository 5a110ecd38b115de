package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/parse"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/vectorstore"
)

const sampleGoFile = `package sample

// Greet returns a greeting for name.
func Greet(name string) string {
	return "hello " + name
}
`

func newTestEnv(t *testing.T) (*Env, string) {
	t.Helper()

	repoDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "sample.go"), []byte(sampleGoFile), 0o644))

	dataDir := t.TempDir()
	db, err := store.Open(filepath.Join(dataDir, "indiseek.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := db.CreateRepo("sample", "https://example.com/sample.git", repoDir)
	require.NoError(t, err)

	env := &Env{
		DB:        db,
		Vectors:   vectorstore.NewManager(dataDir),
		Lexical:   lexstore.NewManager(dataDir),
		Chunker:   parse.NewChunker(),
		Embedder:  provider.NewStubProvider(8),
		Generator: provider.NewStubProvider(8),
		RepoID:    repo.ID,
		RepoPath:  repoDir,
		EmbedDims: 8,
	}
	return env, repoDir
}

func TestParse_IndexesRepoTree(t *testing.T) {
	env, _ := newTestEnv(t)

	counts, err := Parse(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, counts["files_found"])
	assert.Equal(t, 1, counts["files_parsed"])
	assert.Zero(t, counts["errors"])
	assert.Positive(t, counts["chunks"])

	chunks, err := env.DB.AllChunks(env.RepoID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestParse_Rerun_IsIdempotent(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := Parse(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	first, err := env.DB.AllChunks(env.RepoID)
	require.NoError(t, err)

	_, err = Parse(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	second, err := env.DB.AllChunks(env.RepoID)
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second))
}

func TestEmbed_VectorsAllChunks(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := Parse(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)

	counts, err := Embed(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	assert.Positive(t, counts["embedded"])
	assert.Zero(t, counts["batch_failures"])

	ids, err := env.Vectors.AllChunkIDs(env.RepoID)
	require.NoError(t, err)
	assert.Len(t, ids, counts["embedded"])
}

func TestEmbed_Rerun_SkipsAlreadyEmbedded(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := Parse(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	_, err = Embed(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)

	counts, err := Embed(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, counts["pending"])
	assert.Zero(t, counts["embedded"])
}

func TestSummarizeFiles_AndDirectories(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := Parse(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)

	fc, err := SummarizeFiles(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fc["summarized"])

	needing, err := env.DB.FilesNeedingSummary(env.RepoID)
	require.NoError(t, err)
	assert.Empty(t, needing)

	dc, err := SummarizeDirectories(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, dc["summarized"])

	dirs, err := env.DB.DirectorySummariesInDir(env.RepoID, "")
	require.NoError(t, err)
	assert.Len(t, dirs, 0)
}

func TestSummarizeDirectories_Rerun_SkipsUnchanged(t *testing.T) {
	env, repoDir := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "sub", "other.go"), []byte(sampleGoFile), 0o644))

	_, err := Parse(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	_, err = SummarizeFiles(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)

	first, err := SummarizeDirectories(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first["summarized"])
	assert.Zero(t, first["skipped"])

	second, err := SummarizeDirectories(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	assert.Zero(t, second["summarized"])
	assert.Equal(t, 1, second["skipped"])
}

func TestBuildLexical_IndexesChunks(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := Parse(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)

	counts, err := BuildLexical(context.Background(), env, StageOptions{}, nil)
	require.NoError(t, err)
	assert.Positive(t, counts["indexed"])

	hits, err := env.Lexical.Search(env.RepoID, "greet", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestLoadXrefs_EmptyStream(t *testing.T) {
	env, _ := newTestEnv(t)

	counts, err := LoadXrefs(context.Background(), env, strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, counts["documents"])
}
