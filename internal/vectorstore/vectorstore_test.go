package vectorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_AddAndSearch(t *testing.T) {
	// Given: an open 4-dimensional index for repo 1
	m := NewManager(t.TempDir())
	require.NoError(t, m.Open(1, 4))

	// And: vectors a=[1,0,0,0], b=[0,1,0,0], c=[0.9,0.1,0,0]
	err := m.Upsert(1, []Row{
		{ChunkID: 1, Vector: []float32{1, 0, 0, 0}},
		{ChunkID: 2, Vector: []float32{0, 1, 0, 0}},
		{ChunkID: 3, Vector: []float32{0.9, 0.1, 0, 0}},
	})
	require.NoError(t, err)

	// When: searching for [1,0,0,0] with k=2
	results, err := m.Search(1, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)

	// Then: chunk 1 is the exact match, chunk 3 is the near match
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.Equal(t, int64(3), results[1].ChunkID)
	assert.Greater(t, results[0].Score, float32(0.99))
}

func TestManager_Open_DimensionMismatch(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Open(1, 4))

	err := m.Open(1, 8)

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 8, dimErr.Got)
}

func TestManager_Upsert_ReplacesExisting(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Open(1, 2))

	require.NoError(t, m.Upsert(1, []Row{{ChunkID: 1, Vector: []float32{1, 0}}}))
	require.NoError(t, m.Upsert(1, []Row{{ChunkID: 1, Vector: []float32{0, 1}}}))

	ids, err := m.AllChunkIDs(1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	results, err := m.Search(1, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].Score, float32(0.99))
}

func TestManager_DeleteByChunkIDs_Lazy(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Open(1, 2))
	require.NoError(t, m.Upsert(1, []Row{
		{ChunkID: 1, Vector: []float32{1, 0}},
		{ChunkID: 2, Vector: []float32{0, 1}},
	}))

	require.NoError(t, m.DeleteByChunkIDs(1, []int64{1}))

	ids, err := m.AllChunkIDs(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2}, ids)
}

func TestManager_SaveAndReload(t *testing.T) {
	dir := t.TempDir()

	m1 := NewManager(dir)
	require.NoError(t, m1.Open(1, 3))
	require.NoError(t, m1.Upsert(1, []Row{
		{ChunkID: 42, Vector: []float32{1, 2, 3}},
	}))
	require.NoError(t, m1.Save(1))

	// A fresh Manager pointed at the same directory reloads the index and
	// rejects a mismatched dimensionality on Open.
	m2 := NewManager(dir)
	require.NoError(t, m2.Open(1, 3))

	ids, err := m2.AllChunkIDs(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, NewManager(dir).Open(1, 4), &dimErr)

	path := filepath.Join(dir, "lancedb", "vectors_1.hnsw")
	assert.FileExists(t, path)
	assert.FileExists(t, path+".meta")
}

func TestManager_Search_DimensionMismatch(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Open(1, 4))

	_, err := m.Search(1, []float32{1, 2}, 1)

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
}
