// Package lexstore implements indiseek's per-repo lexical (BM25) index over
// chunk content. It is grounded on the teacher's internal/store/bm25.go:
// a custom code-aware tokenizer registered with github.com/blevesearch/bleve/v2,
// composed with Bleve's built-in English snowball stemmer. Bleve's
// directory-based index (unlike a single-file FTS5 database) is what makes
// the atomic rebuild-and-swap spec.md §4.3/§9 requires a plain os.Rename.
package lexstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/breeze4/indiseek/internal/ierrors"
)

const (
	codeTokenizerName = "indiseek_code_tokenizer"
	codeStopName      = "indiseek_code_stop"
	codeAnalyzerName  = "indiseek_code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(codeStopName, codeStopFilterConstructor)
}

// Document is one chunk's lexical-index document.
type Document struct {
	ChunkID    int64
	FilePath   string
	SymbolName string
	ChunkType  string
	StartLine  int
	EndLine    int
	Content    string
}

// Hit is one lexical search result.
type Hit struct {
	ChunkID      int64
	Score        float64
	MatchedTerms []string
}

// bleveDoc is the shape actually handed to Bleve.
type bleveDoc struct {
	FilePath   string `json:"file_path"`
	SymbolName string `json:"symbol_name"`
	ChunkType  string `json:"chunk_type"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Content    string `json:"content"`
}

// Manager owns one Bleve index directory per repo, rooted at
// dataDir/tantivy_{repoID}/.
type Manager struct {
	mu      sync.Mutex
	dataDir string
	indexes map[int64]bleve.Index
}

// NewManager creates a Manager rooted at dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir, indexes: make(map[int64]bleve.Index)}
}

func (m *Manager) dirFor(repoID int64) string {
	return filepath.Join(m.dataDir, fmt.Sprintf("tantivy_%d", repoID))
}

// Open opens (or creates, if absent) repoID's on-disk index.
func (m *Manager) Open(repoID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.indexes[repoID]; ok {
		return nil
	}

	path := m.dirFor(repoID)
	idx, err := openOrCreate(path)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "lexstore: open", err)
	}
	m.indexes[repoID] = idx
	return nil
}

func openOrCreate(path string) (bleve.Index, error) {
	indexMapping, err := buildMapping()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return bleve.New(path, indexMapping)
	}
	idx, err := bleve.Open(path)
	if err == nil {
		return idx, nil
	}
	// Corrupted index: clear and recreate, matching the teacher's
	// auto-recovery behavior for a mangled index_meta.json.
	if rmErr := os.RemoveAll(path); rmErr != nil {
		return nil, fmt.Errorf("index at %s unreadable and cannot be cleared: %w (original: %v)", path, rmErr, err)
	}
	return bleve.New(path, indexMapping)
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(codeAnalyzerName, map[string]any{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			codeStopName,
			en.StemmerName,
		},
	}); err != nil {
		return nil, fmt.Errorf("lexstore: add analyzer: %w", err)
	}
	im.DefaultAnalyzer = codeAnalyzerName

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = codeAnalyzerName
	docMapping.AddFieldMappingsAt("content", contentField)

	rawField := bleve.NewTextFieldMapping()
	rawField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("file_path", rawField)
	docMapping.AddFieldMappingsAt("symbol_name", rawField)
	docMapping.AddFieldMappingsAt("chunk_type", rawField)

	numField := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("start_line", numField)
	docMapping.AddFieldMappingsAt("end_line", numField)

	im.AddDocumentMapping("_default", docMapping)
	return im, nil
}

// Build performs a full rebuild of repoID's lexical index from docs: write
// into a fresh sibling directory, then atomically rename it into place.
// This is the only mutation lexstore supports — spec.md §4.3 deliberately
// has no incremental add.
func (m *Manager) Build(repoID int64, docs []Document) error {
	finalPath := m.dirFor(repoID)
	tmpPath := finalPath + fmt.Sprintf(".tmp-%d", repoID)
	os.RemoveAll(tmpPath)

	indexMapping, err := buildMapping()
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "lexstore: build mapping", err)
	}
	fresh, err := bleve.New(tmpPath, indexMapping)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "lexstore: create fresh index", err)
	}

	batch := fresh.NewBatch()
	for _, d := range docs {
		doc := bleveDoc{
			FilePath:   d.FilePath,
			SymbolName: d.SymbolName,
			ChunkType:  d.ChunkType,
			StartLine:  d.StartLine,
			EndLine:    d.EndLine,
			Content:    d.Content,
		}
		if err := batch.Index(strconv.FormatInt(d.ChunkID, 10), doc); err != nil {
			fresh.Close()
			os.RemoveAll(tmpPath)
			return ierrors.Wrap(ierrors.Internal, "lexstore: batch index", err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		os.RemoveAll(tmpPath)
		return ierrors.Wrap(ierrors.Internal, "lexstore: execute batch", err)
	}
	if err := fresh.Close(); err != nil {
		os.RemoveAll(tmpPath)
		return ierrors.Wrap(ierrors.Internal, "lexstore: close fresh index", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.indexes[repoID]; ok {
		existing.Close()
		delete(m.indexes, repoID)
	}
	os.RemoveAll(finalPath)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return ierrors.Wrap(ierrors.Internal, "lexstore: atomic swap", err)
	}

	idx, err := bleve.Open(finalPath)
	if err != nil {
		return ierrors.Wrap(ierrors.Internal, "lexstore: reopen after build", err)
	}
	m.indexes[repoID] = idx
	return nil
}

// Search runs a BM25 query against repoID's index, returning up to k hits
// ranked by score descending.
func (m *Manager) Search(repoID int64, query string, k int) ([]*Hit, error) {
	m.mu.Lock()
	idx, ok := m.indexes[repoID]
	m.mu.Unlock()
	if !ok {
		return nil, ierrors.NotFoundf("lexical index for repo %d not open", repoID)
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("content")

	req := bleve.NewSearchRequest(match)
	req.Size = k
	req.IncludeLocations = true

	result, err := idx.Search(req)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "lexstore: search", err)
	}

	hits := make([]*Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, &Hit{
			ChunkID:      id,
			Score:        h.Score,
			MatchedTerms: matchedTerms(h),
		})
	}
	return hits, nil
}

func matchedTerms(hit *search.DocumentMatch) []string {
	seen := map[string]struct{}{}
	for field, locs := range hit.Locations {
		if field != "content" {
			continue
		}
		for term := range locs {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	return terms
}

// Close releases repoID's open index handle without deleting it from disk.
func (m *Manager) Close(repoID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[repoID]
	if !ok {
		return nil
	}
	delete(m.indexes, repoID)
	return idx.Close()
}

// DeleteRepo closes and removes repoID's on-disk index entirely.
func (m *Manager) DeleteRepo(repoID int64) error {
	m.Close(repoID)
	if err := os.RemoveAll(m.dirFor(repoID)); err != nil {
		return ierrors.Wrap(ierrors.Internal, "lexstore: delete repo index", err)
	}
	return nil
}

func codeTokenizerConstructor(config map[string]any, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	lowerText := strings.ToLower(text)
	for _, token := range tokens {
		start := offset
		if idx := strings.Index(lowerText[offset:], token); idx != -1 {
			start = offset + idx
		}
		end := start + len(token)
		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return result
}

func codeStopFilterConstructor(config map[string]any, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &codeStopFilter{stopWords: BuildStopWordMap(DefaultStopWords)}, nil
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		term := strings.ToLower(string(tok.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, tok)
		}
	}
	return result
}
