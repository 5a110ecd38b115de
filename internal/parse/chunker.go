package parse

import (
	"context"
	"strings"

	"github.com/breeze4/indiseek/pkg/models"
)

const (
	maxChunkLines = 120 // ~2400 tokens at 80 chars/line, 4 chars/token
	overlapLines  = 12
)

// Chunker splits one file's content into AST-scoped chunks.
type Chunker struct {
	parser    *Parser
	extractor *SymbolExtractor
	registry  *LanguageRegistry
}

// NewChunker creates a Chunker bound to the default language registry.
func NewChunker() *Chunker {
	return &Chunker{
		parser:    NewParser(),
		extractor: NewSymbolExtractor(),
		registry:  DefaultRegistry(),
	}
}

// Close releases the chunker's parser resources.
func (c *Chunker) Close() {
	c.parser.Close()
}

// Chunk parses content as language and returns both the structural
// symbols and the chunks derived from them. Unsupported languages and
// parse failures fall back to line-based chunking with no symbols.
func (c *Chunker) Chunk(ctx context.Context, repoID int64, filePath, language string, content []byte) ([]*models.Symbol, []*models.Chunk, error) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, nil, nil
	}

	if _, ok := c.registry.GetByName(language); !ok {
		return nil, c.chunkByLines(repoID, filePath, content), nil
	}

	tree, err := c.parser.Parse(ctx, content, language)
	if err != nil {
		return nil, c.chunkByLines(repoID, filePath, content), nil
	}

	symbols := c.extractor.Extract(tree, repoID, filePath)
	if len(symbols) == 0 {
		return nil, c.chunkByLines(repoID, filePath, content), nil
	}

	chunks := make([]*models.Chunk, 0, len(symbols))
	for _, sym := range symbols {
		chunks = append(chunks, c.chunksForSymbol(repoID, filePath, sym, content)...)
	}
	return symbols, chunks, nil
}

func (c *Chunker) chunksForSymbol(repoID int64, filePath string, sym *models.Symbol, content []byte) []*models.Chunk {
	lines := strings.Split(string(content), "\n")
	start := sym.Range.StartLine
	end := sym.Range.EndLine
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return nil
	}
	body := strings.Join(lines[start-1:end], "\n")

	if len(body)/4 <= DefaultMaxChunkTokens {
		return []*models.Chunk{{
			RepoID:        repoID,
			FilePath:      filePath,
			SymbolName:    sym.Name,
			ChunkType:     chunkTypeForSymbol(sym.Kind),
			StartLine:     start,
			EndLine:       end,
			Content:       body,
			TokenEstimate: len(body) / 4,
		}}
	}

	return c.splitByLines(repoID, filePath, sym, lines, start, end)
}

func (c *Chunker) splitByLines(repoID int64, filePath string, sym *models.Symbol, lines []string, start, end int) []*models.Chunk {
	var chunks []*models.Chunk
	for i := start; i <= end; {
		chunkEnd := i + maxChunkLines - 1
		if chunkEnd > end {
			chunkEnd = end
		}
		body := strings.Join(lines[i-1:chunkEnd], "\n")
		chunks = append(chunks, &models.Chunk{
			RepoID:        repoID,
			FilePath:      filePath,
			SymbolName:    sym.Name,
			ChunkType:     chunkTypeForSymbol(sym.Kind),
			StartLine:     i,
			EndLine:       chunkEnd,
			Content:       body,
			TokenEstimate: len(body) / 4,
		})
		if chunkEnd >= end {
			break
		}
		i = chunkEnd - overlapLines + 1
	}
	return chunks
}

// chunkByLines is the fallback chunker for files with no recognized
// language or a parse failure: plain line windows, no symbol association.
func (c *Chunker) chunkByLines(repoID int64, filePath string, content []byte) []*models.Chunk {
	text := string(content)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil
	}

	var chunks []*models.Chunk
	for i := 1; i <= len(lines); {
		end := i + maxChunkLines - 1
		if end > len(lines) {
			end = len(lines)
		}
		body := strings.Join(lines[i-1:end], "\n")
		chunks = append(chunks, &models.Chunk{
			RepoID:        repoID,
			FilePath:      filePath,
			ChunkType:     models.ChunkFile,
			StartLine:     i,
			EndLine:       end,
			Content:       body,
			TokenEstimate: len(body) / 4,
		})
		if end >= len(lines) {
			break
		}
		i = end - overlapLines + 1
	}
	return chunks
}

func chunkTypeForSymbol(kind models.SymbolKind) models.ChunkType {
	switch kind {
	case models.SymbolFunction:
		return models.ChunkFunction
	case models.SymbolMethod:
		return models.ChunkMethod
	case models.SymbolClass, models.SymbolInterface:
		return models.ChunkClass
	default:
		return models.ChunkModule
	}
}

// DefaultMaxChunkTokens caps a single-symbol chunk before it gets split
// into overlapping line windows.
const DefaultMaxChunkTokens = 500
