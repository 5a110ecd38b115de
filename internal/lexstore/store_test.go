package lexstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_BuildAndSearch(t *testing.T) {
	m := NewManager(t.TempDir())

	// Given: a full rebuild with two chunks, one of which mentions "parse"
	docs := []Document{
		{ChunkID: 1, FilePath: "a.go", ChunkType: "function", Content: "func ParseConfig() error { return nil }"},
		{ChunkID: 2, FilePath: "b.go", ChunkType: "function", Content: "func WriteFile() error { return nil }"},
	}
	require.NoError(t, m.Build(1, docs))

	// When: searching for "parse"
	hits, err := m.Search(1, "parse", 10)
	require.NoError(t, err)

	// Then: the chunk containing "ParseConfig" ranks first
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(1), hits[0].ChunkID)
}

func TestManager_Build_AtomicSwap(t *testing.T) {
	m := NewManager(t.TempDir())

	require.NoError(t, m.Build(1, []Document{
		{ChunkID: 1, FilePath: "a.go", ChunkType: "function", Content: "func Alpha() {}"},
	}))
	hits, err := m.Search(1, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// When: rebuilding with entirely different content
	require.NoError(t, m.Build(1, []Document{
		{ChunkID: 2, FilePath: "b.go", ChunkType: "function", Content: "func Beta() {}"},
	}))

	// Then: the old content is gone and the new content is searchable —
	// rebuild is a full replace, not a merge.
	hits, err = m.Search(1, "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = m.Search(1, "beta", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ChunkID)
}

func TestTokenizeCode_SplitsIdentifiers(t *testing.T) {
	tokens := TokenizeCode("parseHTTPRequest get_user_by_id")

	assert.Contains(t, tokens, "parse")
	assert.Contains(t, tokens, "http")
	assert.Contains(t, tokens, "request")
	assert.Contains(t, tokens, "get")
	assert.Contains(t, tokens, "user")
	assert.Contains(t, tokens, "by")
	assert.Contains(t, tokens, "id")
}

func TestManager_Search_RepoNotOpen(t *testing.T) {
	m := NewManager(t.TempDir())

	_, err := m.Search(99, "anything", 10)

	require.Error(t, err)
}
