// Package retrieval implements the four tools the Agent Loop (and the
// HTTP layer directly) uses to inspect an indexed repo: read_map,
// search_code, resolve_symbol, and read_file (spec.md §4.7). Each tool is
// a thin orchestration over the relational, vector, and lexical stores
// already built, following the teacher's pattern of small composed
// retrieval helpers (internal/index/runner.go) rather than a single god
// object.
package retrieval

import (
	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/vectorstore"
)

// Tools bundles the store handles every retrieval tool needs, scoped to
// one repo per call (repo_id is an explicit argument on each method so a
// single Tools value can serve every repo in the process).
type Tools struct {
	DB      *store.DB
	Vectors *vectorstore.Manager
	Lexical *lexstore.Manager
}

func New(db *store.DB, vectors *vectorstore.Manager, lexical *lexstore.Manager) *Tools {
	return &Tools{DB: db, Vectors: vectors, Lexical: lexical}
}

// SearchMode selects which backend(s) search_code consults.
type SearchMode string

const (
	ModeSemantic SearchMode = "semantic"
	ModeLexical  SearchMode = "lexical"
	ModeHybrid   SearchMode = "hybrid"
)

// rrfK is the reciprocal-rank-fusion constant spec.md §4.7 names.
const rrfK = 60

// fuseRRF merges ranked chunk-id lists by reciprocal rank fusion:
// score(id) = Σ 1/(rrfK + rank), rank is 1-indexed within each list.
// Returns chunk ids ordered by descending fused score, the fused score
// itself per id (spec.md §4.2's literal RRF formula — not a placeholder),
// and the set of ids present in more than one list (match_type=hybrid
// candidates).
func fuseRRF(lists ...[]int64) (ranked []int64, scores map[int64]float64, inMultiple map[int64]bool) {
	scores = map[int64]float64{}
	seenIn := map[int64]int{}

	for _, list := range lists {
		for rank, id := range list {
			scores[id] += 1.0 / float64(rrfK+rank+1)
			seenIn[id]++
		}
	}

	ranked = make([]int64, 0, len(scores))
	for id := range scores {
		ranked = append(ranked, id)
	}
	sortByScoreDesc(ranked, scores)

	inMultiple = map[int64]bool{}
	for id, n := range seenIn {
		if n > 1 {
			inMultiple[id] = true
		}
	}
	return ranked, scores, inMultiple
}

func sortByScoreDesc(ids []int64, scores map[int64]float64) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && scores[ids[j]] > scores[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}
