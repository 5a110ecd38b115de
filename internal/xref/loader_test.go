package xref

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoad_UpsertsSymbolsAndOccurrences(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("r1", "", "/tmp/r1")
	require.NoError(t, err)

	doc := encodeDocument(t, "src/foo.go",
		[]SymbolInfo{{Symbol: "pkg/foo.Bar().", Documentation: []string{"does a thing"}}},
		[]Occurrence{
			{Symbol: "pkg/foo.Bar().", Range: []int32{10, 0, 5}, SymbolRoles: SymbolRoleDefinition},
			{Symbol: "pkg/foo.Bar().", Range: []int32{20, 0, 5}, SymbolRoles: 0},
		},
	)
	stream := encodeStream(t, doc)

	stats, err := Load(bytes.NewReader(stream), repo.ID, db, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Symbols)
	assert.Equal(t, 2, stats.Occurrences)

	sym, err := db.XrefSymbolByString(repo.ID, "pkg/foo.Bar().")
	require.NoError(t, err)
	assert.Equal(t, "does a thing", sym.Documentation)

	occs, err := db.OccurrencesForSymbol(sym.ID, "")
	require.NoError(t, err)
	assert.Len(t, occs, 2)
}

func TestLoad_SkipsLocalSymbols(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("r1", "", "/tmp/r1")
	require.NoError(t, err)

	doc := encodeDocument(t, "src/foo.go",
		[]SymbolInfo{{Symbol: "local 0"}},
		[]Occurrence{{Symbol: "local 0", Range: []int32{1, 0, 1}, SymbolRoles: SymbolRoleDefinition}},
	)
	stream := encodeStream(t, doc)

	stats, err := Load(bytes.NewReader(stream), repo.ID, db, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Symbols)
	assert.Equal(t, 0, stats.Occurrences)
	assert.Equal(t, 1, stats.Skipped)

	_, err = db.XrefSymbolByString(repo.ID, "local 0")
	assert.Error(t, err)
}

func TestLoad_ReplacesExistingXrefsOnReload(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("r1", "", "/tmp/r1")
	require.NoError(t, err)

	first := encodeStream(t, encodeDocument(t, "a.go", []SymbolInfo{{Symbol: "sym.A"}}, nil))
	_, err = Load(bytes.NewReader(first), repo.ID, db, nil)
	require.NoError(t, err)

	second := encodeStream(t, encodeDocument(t, "b.go", []SymbolInfo{{Symbol: "sym.B"}}, nil))
	_, err = Load(bytes.NewReader(second), repo.ID, db, nil)
	require.NoError(t, err)

	_, err = db.XrefSymbolByString(repo.ID, "sym.A")
	assert.Error(t, err, "first load's symbols should be gone after the second full reload")

	_, err = db.XrefSymbolByString(repo.ID, "sym.B")
	assert.NoError(t, err)
}

func TestLoad_RelationshipRecorded(t *testing.T) {
	db := newTestDB(t)
	repo, err := db.CreateRepo("r1", "", "/tmp/r1")
	require.NoError(t, err)

	doc := encodeDocument(t, "a.go", []SymbolInfo{
		{
			Symbol:        "iface.Impl",
			Relationships: []Relationship{{Symbol: "iface.Base", IsImplementation: true}},
		},
	}, nil)
	stream := encodeStream(t, doc)

	_, err = Load(bytes.NewReader(stream), repo.ID, db, nil)
	require.NoError(t, err)

	impl, err := db.XrefSymbolByString(repo.ID, "iface.Impl")
	require.NoError(t, err)

	rels, err := db.RelationshipsFrom(impl.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "implementation", string(rels[0].Kind))
}
