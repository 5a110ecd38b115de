package retrieval

import (
	"context"
	"strings"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/pkg/models"
)

// previewChars bounds how much of a chunk's content search_code returns
// inline, enough for the agent to decide whether to read_file the rest.
const previewChars = 300

// SearchHit is one ranked result from search_code.
type SearchHit struct {
	ChunkID   int64
	FilePath  string
	Symbol    string
	ChunkType models.ChunkType
	StartLine int
	EndLine   int
	Preview   string
	Score     float64
	MatchType string // "semantic", "lexical", or "hybrid"
}

// SearchCode dispatches to the vector store, the lexical store, or both,
// per mode. In hybrid mode, both backends' ranked chunk-id lists are
// merged by reciprocal rank fusion; a backend with no index yet degrades
// hybrid mode to whichever backend is available.
func (t *Tools) SearchCode(ctx context.Context, repoID int64, embedder provider.EmbeddingProvider, query string, mode SearchMode, k int) ([]SearchHit, error) {
	if k <= 0 {
		k = 10
	}

	var semanticIDs, lexicalIDs []int64
	var semanticScores, lexicalScores map[int64]float64
	var semanticErr, lexicalErr error

	if mode == ModeSemantic || mode == ModeHybrid {
		semanticIDs, semanticScores, semanticErr = t.semanticSearch(ctx, repoID, embedder, query, k)
	}
	if mode == ModeLexical || mode == ModeHybrid {
		lexicalIDs, lexicalScores, lexicalErr = t.lexicalSearch(repoID, query, k)
	}

	if mode == ModeSemantic && semanticErr != nil {
		return nil, semanticErr
	}
	if mode == ModeLexical && lexicalErr != nil {
		return nil, lexicalErr
	}
	if mode == ModeHybrid && semanticErr != nil && lexicalErr != nil {
		return nil, ierrors.Wrap(ierrors.PipelineErr, "search_code: both backends failed", semanticErr)
	}

	var rankedIDs []int64
	var scores map[int64]float64
	matchType := map[int64]string{}

	switch {
	case mode == ModeSemantic, mode == ModeHybrid && lexicalErr != nil:
		rankedIDs = semanticIDs
		scores = semanticScores
		for _, id := range rankedIDs {
			matchType[id] = "semantic"
		}
	case mode == ModeLexical, mode == ModeHybrid && semanticErr != nil:
		rankedIDs = lexicalIDs
		scores = lexicalScores
		for _, id := range rankedIDs {
			matchType[id] = "lexical"
		}
	default: // hybrid, both available
		fused, fusedScores, inMultiple := fuseRRF(semanticIDs, lexicalIDs)
		rankedIDs = fused
		scores = fusedScores
		semSet, lexSet := toSet(semanticIDs), toSet(lexicalIDs)
		for _, id := range rankedIDs {
			switch {
			case inMultiple[id]:
				matchType[id] = "hybrid"
			case semSet[id]:
				matchType[id] = "semantic"
			case lexSet[id]:
				matchType[id] = "lexical"
			}
		}
	}

	if len(rankedIDs) > k {
		rankedIDs = rankedIDs[:k]
	}

	chunks, err := t.DB.ChunksByIDs(repoID, rankedIDs)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(rankedIDs))
	for _, id := range rankedIDs {
		c, ok := chunks[id]
		if !ok {
			continue
		}
		hits = append(hits, SearchHit{
			ChunkID:   c.ID,
			FilePath:  c.FilePath,
			Symbol:    c.SymbolName,
			ChunkType: c.ChunkType,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Preview:   truncate(c.Content, previewChars),
			Score:     scores[id],
			MatchType: matchType[id],
		})
	}
	return hits, nil
}

// semanticSearch returns the vector store's nearest-neighbor chunk ids
// alongside their real cosine/L2-derived scores (vectorstore.Result.Score),
// not a rank-position placeholder.
func (t *Tools) semanticSearch(ctx context.Context, repoID int64, embedder provider.EmbeddingProvider, query string, k int) ([]int64, map[int64]float64, error) {
	if embedder == nil {
		return nil, nil, ierrors.BadRequestf("search_code: no embedding provider configured")
	}
	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, nil, err
	}
	results, err := t.Vectors.Search(repoID, vectors[0], k)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, len(results))
	scores := make(map[int64]float64, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
		scores[r.ChunkID] = float64(r.Score)
	}
	return ids, scores, nil
}

// lexicalSearch returns the lexical store's matches alongside their real
// BM25-derived scores (lexstore.Hit.Score).
func (t *Tools) lexicalSearch(repoID int64, query string, k int) ([]int64, map[int64]float64, error) {
	hits, err := t.Lexical.Search(repoID, query, k)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, len(hits))
	scores := make(map[int64]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
		scores[h.ChunkID] = h.Score
	}
	return ids, scores, nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "…"
}
