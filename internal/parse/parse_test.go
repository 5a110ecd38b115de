package parse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/pkg/models"
)

func TestChunker_GoFunctionsProduceSymbolsAndChunks(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	src := `package main

func Add(a, b int) int {
	return a + b
}

func Sub(a, b int) int {
	return a - b
}
`
	symbols, chunks, err := c.Chunk(context.Background(), 1, "math.go", "go", []byte(src))
	require.NoError(t, err)

	require.Len(t, symbols, 2)
	assert.Equal(t, "Add", symbols[0].Name)
	assert.Equal(t, models.SymbolFunction, symbols[0].Kind)
	assert.Equal(t, "Sub", symbols[1].Name)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Content, "func Add")
	assert.Equal(t, models.ChunkFunction, chunks[0].ChunkType)
}

func TestChunker_UnsupportedLanguageFallsBackToLines(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	_, chunks, err := c.Chunk(context.Background(), 1, "README.md", "markdown", []byte("# Title\n\nsome text\n"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, models.ChunkFile, chunks[0].ChunkType)
}

func TestChunker_EmptyFileProducesNoChunks(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	symbols, chunks, err := c.Chunk(context.Background(), 1, "empty.go", "go", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, symbols)
	assert.Empty(t, chunks)
}

func TestSymbolExtractor_MethodNestedUnderStruct(t *testing.T) {
	parser := NewParser()
	defer parser.Close()

	src := `package main

type Server struct{}

func (s *Server) Start() error {
	return nil
}
`
	tree, err := parser.Parse(context.Background(), []byte(src), "go")
	require.NoError(t, err)

	extractor := NewSymbolExtractor()
	symbols := extractor.Extract(tree, 1, "server.go")

	require.Len(t, symbols, 2)
	names := []string{symbols[0].Name, symbols[1].Name}
	assert.Contains(t, names, "Server")
	assert.Contains(t, names, "Start")
}

func TestLanguageForPath(t *testing.T) {
	assert.Equal(t, "go", LanguageForPath("internal/foo/bar.go"))
	assert.Equal(t, "typescript", LanguageForPath("src/app.ts"))
	assert.Equal(t, "tsx", LanguageForPath("src/App.tsx"))
	assert.Equal(t, "python", LanguageForPath("scripts/run.py"))
	assert.Equal(t, "", LanguageForPath("README.md"))
}

func TestWalkSourceFiles_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main")
	writeFile(t, dir, "README.md", "# hi")
	writeFile(t, dir, "node_modules/pkg/index.js", "module.exports = {}")

	files, err := WalkSourceFiles(dir, "")
	require.NoError(t, err)

	assert.Contains(t, files, "main.go")
	assert.NotContains(t, files, "README.md")
	for _, f := range files {
		assert.NotContains(t, f, "node_modules")
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}
