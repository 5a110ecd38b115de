package agent

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/breeze4/indiseek/internal/textsim"
)

// jaccardThreshold is the similarity above which a new search_code query
// is considered a duplicate of one already answered this run. Set higher
// than the cross-run Query Cache's 0.8 (internal/cache.Threshold): a
// within-run rephrasing needs to be a near-exact restatement before its
// tool call is worth skipping, since unlike the cache a false merge here
// can't be corrected by falling through to a fresh model turn.
const jaccardThreshold = 0.9

// maxMemoizedSearches bounds the fuzzy search_code history so a long-running
// agent turn with hundreds of distinct queries doesn't grow toolMemo's
// linear-scan list without limit; oldest entries drop off first.
const maxMemoizedSearches = 256

// exactMemoSize bounds the exact-match cache the same way, mirroring the
// teacher's CachedEmbedder: a fixed-size LRU rather than an unbounded map.
const exactMemoSize = 512

// toolMemo suppresses duplicate tool invocations within one run.
// search_code is memoized by Jaccard-similar query text; every other
// tool (read_file, resolve_symbol, read_map) is memoized by exact
// argument match via a bounded LRU, since those arguments are structured
// identifiers rather than free text.
type toolMemo struct {
	searches []memoizedSearch
	exact    *lru.Cache[string, string]
}

type memoizedSearch struct {
	query  string
	result string
}

func newToolMemo() *toolMemo {
	exact, _ := lru.New[string, string](exactMemoSize)
	return &toolMemo{exact: exact}
}

// lookup returns a cached result and true if this call is a duplicate.
func (m *toolMemo) lookup(name string, args map[string]any, rawArgs string) (string, bool) {
	if name == "search_code" {
		q := stringArg(args, "query")
		for _, s := range m.searches {
			if textsim.Jaccard(q, s.query) >= jaccardThreshold {
				return s.result, true
			}
		}
		return "", false
	}
	return m.exact.Get(name + ":" + rawArgs)
}

func (m *toolMemo) store(name string, args map[string]any, rawArgs, result string) {
	if name == "search_code" {
		if len(m.searches) >= maxMemoizedSearches {
			m.searches = m.searches[1:]
		}
		m.searches = append(m.searches, memoizedSearch{query: stringArg(args, "query"), result: result})
		return
	}
	m.exact.Add(name+":"+rawArgs, result)
}
