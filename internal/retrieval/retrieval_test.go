package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/vectorstore"
	"github.com/breeze4/indiseek/pkg/models"
)

func newTestTools(t *testing.T) (*Tools, int64) {
	t.Helper()
	dataDir := t.TempDir()
	db, err := store.Open(filepath.Join(dataDir, "indiseek.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := db.CreateRepo("acme", "https://example.com/acme.git", "/tmp/acme")
	require.NoError(t, err)

	vectors := vectorstore.NewManager(dataDir)
	lexical := lexstore.NewManager(dataDir)
	return New(db, vectors, lexical), repo.ID
}

func seedChunk(t *testing.T, tools *Tools, repoID int64, filePath, symbol, content string, start, end int) *models.Chunk {
	t.Helper()
	chunk := &models.Chunk{
		RepoID: repoID, FilePath: filePath, SymbolName: symbol,
		ChunkType: models.ChunkFunction, StartLine: start, EndLine: end, Content: content,
	}
	ids, _, err := tools.DB.ReplaceFileChunks(repoID, filePath, []*models.Chunk{chunk})
	require.NoError(t, err)
	chunk.ID = ids[0]
	return chunk
}

func TestFuseRRF_PrefersItemsInBothLists(t *testing.T) {
	ranked, scores, inMultiple := fuseRRF([]int64{1, 2, 3}, []int64{3, 1, 4})

	assert.True(t, inMultiple[1])
	assert.True(t, inMultiple[3])
	assert.False(t, inMultiple[2])
	assert.False(t, inMultiple[4])
	assert.Equal(t, int64(1), ranked[0])
	assert.Greater(t, scores[1], scores[2])
}

func TestReadFile_ExpandsShortRangeAndCapsLines(t *testing.T) {
	tools, repoID := newTestTools(t)
	lines := make([]byte, 0)
	for i := 1; i <= 300; i++ {
		lines = append(lines, []byte("line content\n")...)
	}
	require.NoError(t, tools.DB.UpsertFileContent(&models.FileContent{
		RepoID: repoID, FilePath: "big.go", Content: string(lines), LineCount: 300,
	}))

	out, err := tools.ReadFile(repoID, "big.go", 100, 102)
	require.NoError(t, err)
	assert.Contains(t, out, "    26")
	assert.Contains(t, out, "   176")
	assert.NotContains(t, out, "    25  ")
	assert.NotContains(t, out, "   177  ")
}

func TestReadFile_UnknownFileIsNotFound(t *testing.T) {
	tools, repoID := newTestTools(t)
	_, err := tools.ReadFile(repoID, "missing.go", 0, 0)
	require.Error(t, err)
}

func TestReadMap_RendersNestedTreeWithSummaries(t *testing.T) {
	tools, repoID := newTestTools(t)
	require.NoError(t, tools.DB.UpsertDirectorySummary(&models.DirectorySummary{RepoID: repoID, DirPath: "internal", Summary: "core logic"}))
	require.NoError(t, tools.DB.UpsertFileSummary(&models.FileSummary{RepoID: repoID, FilePath: "internal/app.go", Summary: "entry point"}))

	out, err := tools.ReadMap(repoID, "")
	require.NoError(t, err)
	assert.Contains(t, out, "internal/ — core logic")
	assert.Contains(t, out, "app.go — entry point")
}

func TestResolveSymbol_DefinitionAmbiguity(t *testing.T) {
	tools, repoID := newTestTools(t)
	require.NoError(t, tools.DB.ReplaceFileSymbols(repoID, "a.go", []*models.Symbol{
		{RepoID: repoID, FilePath: "a.go", Name: "Run", Kind: models.SymbolFunction, Range: models.Range{StartLine: 1, EndLine: 5}},
	}))
	require.NoError(t, tools.DB.ReplaceFileSymbols(repoID, "b.go", []*models.Symbol{
		{RepoID: repoID, FilePath: "b.go", Name: "Run", Kind: models.SymbolFunction, Range: models.Range{StartLine: 10, EndLine: 20}},
	}))

	out, err := tools.ResolveSymbol(repoID, "Run", ActionDefinition)
	require.NoError(t, err)
	assert.Contains(t, out, "ambiguous")
	assert.Contains(t, out, "a.go:1")
	assert.Contains(t, out, "b.go:10")
}

func TestResolveSymbol_CallersViaXref(t *testing.T) {
	tools, repoID := newTestTools(t)

	xsym, err := tools.DB.UpsertXrefSymbol(repoID, "pkg.Target", "")
	require.NoError(t, err)
	require.NoError(t, tools.DB.InsertOccurrence(&models.Occurrence{
		XrefSymbolID: xsym.ID, RepoID: repoID, FilePath: "caller.go",
		Range: models.Range{StartLine: 12, EndLine: 12}, Role: models.RoleReference,
	}))
	require.NoError(t, tools.DB.ReplaceFileSymbols(repoID, "caller.go", []*models.Symbol{
		{RepoID: repoID, FilePath: "caller.go", Name: "CallSite", Kind: models.SymbolFunction,
			Range: models.Range{StartLine: 5, EndLine: 20}},
	}))

	out, err := tools.ResolveSymbol(repoID, "pkg.Target", ActionCallers)
	require.NoError(t, err)
	assert.Contains(t, out, "caller.go:5")
	assert.Contains(t, out, "CallSite")
}

func TestSearchCode_LexicalMode(t *testing.T) {
	tools, repoID := newTestTools(t)
	c := seedChunk(t, tools, repoID, "search.go", "Search", "func Search() { return results }", 1, 3)

	require.NoError(t, tools.Lexical.Open(repoID))
	require.NoError(t, tools.Lexical.Build(repoID, []lexstore.Document{
		{ChunkID: c.ID, FilePath: c.FilePath, SymbolName: c.SymbolName, Content: c.Content},
	}))

	hits, err := tools.SearchCode(context.Background(), repoID, nil, "Search results", ModeLexical, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "search.go", hits[0].FilePath)
	assert.Equal(t, "lexical", hits[0].MatchType)
}

func TestSearchCode_SemanticMode(t *testing.T) {
	tools, repoID := newTestTools(t)
	c := seedChunk(t, tools, repoID, "vec.go", "Embed", "func Embed() {}", 1, 2)

	require.NoError(t, tools.Vectors.Open(repoID, 8))
	require.NoError(t, tools.Vectors.Upsert(repoID, []vectorstore.Row{{ChunkID: c.ID, Vector: make([]float32, 8)}}))

	hits, err := tools.SearchCode(context.Background(), repoID, provider.NewStubProvider(8), "anything", ModeSemantic, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "semantic", hits[0].MatchType)
}
