package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "indiseek.db")
	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDB_RepoCRUD(t *testing.T) {
	db := newTestDB(t)

	// Given: a new repo is created
	repo, err := db.CreateRepo("acme", "https://github.com/acme/acme.git", "/data/repos/1")
	require.NoError(t, err)
	assert.Equal(t, models.RepoStatusCloning, repo.Status)
	assert.Equal(t, -1, repo.CommitsBehind)

	// When: creating a second repo with the same name
	_, err = db.CreateRepo("acme", "https://github.com/acme/acme.git", "/data/repos/2")

	// Then: it fails with Conflict
	require.Error(t, err)
	assert.True(t, ierrors.OfKind(err, ierrors.Conflict))

	// When: marking it indexed
	require.NoError(t, db.MarkRepoIndexed(repo.ID, "deadbeef"))

	// Then: the stored row reflects the new commit state
	got, err := db.GetRepo(repo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepoStatusActive, got.Status)
	assert.Equal(t, 0, got.CommitsBehind)
	assert.Equal(t, "deadbeef", got.IndexedCommitSHA)
	assert.NotNil(t, got.LastIndexedAt)
}

func TestDB_GetRepo_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetRepo(999)

	require.Error(t, err)
	assert.True(t, ierrors.OfKind(err, ierrors.NotFound))
}

func TestDB_SymbolsByName_Ambiguity(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("acme", "", "/data/repos/1")
	require.NoError(t, err)

	// Given: two symbols named "Run" in different files
	err = db.ReplaceFileSymbols(repo.ID, "a.go", []*models.Symbol{
		{Name: "Run", Kind: models.SymbolFunction, Range: models.Range{StartLine: 1, EndLine: 5}},
	})
	require.NoError(t, err)
	err = db.ReplaceFileSymbols(repo.ID, "b.go", []*models.Symbol{
		{Name: "Run", Kind: models.SymbolMethod, Range: models.Range{StartLine: 10, EndLine: 20}},
	})
	require.NoError(t, err)

	// When: resolving by name
	syms, err := db.SymbolsByName(repo.ID, "Run")
	require.NoError(t, err)

	// Then: both are returned, disclosing ambiguity rather than picking one
	assert.Len(t, syms, 2)
}

func TestDB_SymbolEnclosing(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("acme", "", "/data/repos/1")
	require.NoError(t, err)

	require.NoError(t, db.ReplaceFileSymbols(repo.ID, "a.go", []*models.Symbol{
		{Name: "Outer", Kind: models.SymbolFunction, Range: models.Range{StartLine: 1, EndLine: 50}},
		{Name: "Inner", Kind: models.SymbolFunction, Range: models.Range{StartLine: 10, EndLine: 20}},
	}))

	sym, err := db.SymbolEnclosing(repo.ID, "a.go", 15)
	require.NoError(t, err)
	require.NotNil(t, sym)
	assert.Equal(t, "Inner", sym.Name)
}

func TestDB_ReplaceFileChunks_Idempotent(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("acme", "", "/data/repos/1")
	require.NoError(t, err)

	chunks := []*models.Chunk{
		{ChunkType: models.ChunkFunction, StartLine: 1, EndLine: 10, Content: "func A() {}"},
	}
	ids1, _, err := db.ReplaceFileChunks(repo.ID, "a.go", chunks)
	require.NoError(t, err)
	require.Len(t, ids1, 1)

	// Re-running the same replace is idempotent: exactly one row survives,
	// and the prior row's id comes back as the displaced id.
	ids2, oldIDs2, err := db.ReplaceFileChunks(repo.ID, "a.go", chunks)
	require.NoError(t, err)
	require.Len(t, ids2, 1)
	require.Equal(t, ids1, oldIDs2)

	all, err := db.AllChunks(repo.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDB_ChunksWithoutVector(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("acme", "", "/data/repos/1")
	require.NoError(t, err)

	ids, _, err := db.ReplaceFileChunks(repo.ID, "a.go", []*models.Chunk{
		{ChunkType: models.ChunkFunction, StartLine: 1, EndLine: 10, Content: "one"},
		{ChunkType: models.ChunkFunction, StartLine: 11, EndLine: 20, Content: "two"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	have := map[int64]bool{ids[0]: true}
	remaining, err := db.ChunksWithoutVector(repo.ID, have)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, ids[1], remaining[0].ID)
}

func TestDB_XrefSymbolUpsert_UniquePerRepo(t *testing.T) {
	db := newTestDB(t)
	repoA, err := db.CreateRepo("a", "", "/data/repos/a")
	require.NoError(t, err)
	repoB, err := db.CreateRepo("b", "", "/data/repos/b")
	require.NoError(t, err)

	symA, err := db.UpsertXrefSymbol(repoA.ID, "pkg.Foo", "does foo")
	require.NoError(t, err)
	symB, err := db.UpsertXrefSymbol(repoB.ID, "pkg.Foo", "different repo, same string")
	require.NoError(t, err)

	// Then: the same symbol_string in two repos yields two distinct rows
	assert.NotEqual(t, symA.ID, symB.ID)

	// And: re-upserting in the same repo updates in place rather than duplicating
	updated, err := db.UpsertXrefSymbol(repoA.ID, "pkg.Foo", "updated docs")
	require.NoError(t, err)
	assert.Equal(t, symA.ID, updated.ID)
	assert.Equal(t, "updated docs", updated.Documentation)
}

func TestDB_QueryCache_CompletedSince(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("acme", "", "/data/repos/1")
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-time.Hour)

	id, err := db.CreateRunningQuery(repo.ID, "how does auth work?", "single")
	require.NoError(t, err)
	require.NoError(t, db.CompleteQuery(id, "answer text", []models.EvidenceStep{
		{ToolName: "search_code", Summary: "found 3 hits"},
	}, 1.5, 100, 50, 0, 0.002))

	rows, err := db.CompletedQueriesSince(repo.ID, cutoff)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "answer text", rows[0].Answer)
	assert.Len(t, rows[0].Evidence, 1)
	assert.Equal(t, "search_code", rows[0].Evidence[0].ToolName)
}

func TestDB_EnsureLegacyRepo(t *testing.T) {
	db := newTestDB(t)

	// Given: orphan symbols exist with no repo row (pre-multi-repo data)
	require.NoError(t, db.ReplaceFileSymbols(1, "main.go", []*models.Symbol{
		{Name: "main", Kind: models.SymbolFunction, Range: models.Range{StartLine: 1, EndLine: 3}},
	}))

	// When: the startup auto-migration runs
	require.NoError(t, db.EnsureLegacyRepo("/legacy/path"))

	// Then: a repo row with id=1 is synthesized
	repo, err := db.GetRepo(1)
	require.NoError(t, err)
	assert.Equal(t, "legacy", repo.Name)
	assert.Equal(t, "/legacy/path", repo.LocalPath)

	// And: running it again is a no-op (idempotent)
	require.NoError(t, db.EnsureLegacyRepo("/legacy/path"))
	repos, err := db.ListRepos(true)
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}

func TestDB_LastIndexAt_AdvancesOnMutation(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("acme", "", "/data/repos/1")
	require.NoError(t, err)

	before, err := db.LastIndexAt()
	require.NoError(t, err)
	assert.True(t, before.IsZero())

	require.NoError(t, db.ReplaceFileSymbols(repo.ID, "a.go", nil))

	after, err := db.LastIndexAt()
	require.NoError(t, err)
	assert.False(t, after.IsZero())
}
