// Package cache implements the Query Cache (spec.md §4.9): a
// persistent, prompt-similarity keyed shortcut that lets a repeated
// question bypass the Agent Loop and the Task Manager entirely. It is
// grounded on the teacher's thin-service-over-store pattern (no
// in-memory index of its own — every read goes through internal/store,
// matching how internal/repolife and internal/retrieval are built) and
// shares its similarity measure with internal/agent's tool memoization
// via internal/textsim.
package cache

import (
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/textsim"
	"github.com/breeze4/indiseek/pkg/models"
)

// Threshold is the minimum Jaccard similarity for a cache hit.
const Threshold = 0.8

// Cache answers Lookup against the relational store's completed-query
// history.
type Cache struct {
	DB *store.DB
}

func New(db *store.DB) *Cache {
	return &Cache{DB: db}
}

// Result is the outcome of a Lookup call.
type Result struct {
	Hit      bool
	QueryID  int64
	Answer   string
	Evidence []models.EvidenceStep
}

// Lookup implements spec.md §4.9 steps 1-3. force bypasses the lookup
// entirely (step 4), returning a miss so the caller falls through to the
// Task Manager. On a hit, a new `cached` Query row is inserted
// referencing the matched source row and its id is returned so the
// caller can report it without resubmitting a task.
func (c *Cache) Lookup(repoID int64, prompt string, force bool) (Result, error) {
	if force {
		return Result{}, nil
	}

	lastIndexAt, err := c.DB.LastIndexAt()
	if err != nil {
		return Result{}, err
	}

	candidates, err := c.DB.CompletedQueriesSince(repoID, lastIndexAt)
	if err != nil {
		return Result{}, err
	}

	best, ok := bestMatch(prompt, candidates)
	if !ok {
		return Result{}, nil
	}

	id, err := c.DB.InsertCachedQuery(repoID, prompt, best)
	if err != nil {
		return Result{}, err
	}

	return Result{Hit: true, QueryID: id, Answer: best.Answer, Evidence: best.Evidence}, nil
}

// bestMatch returns the highest-similarity candidate at or above
// Threshold, per spec.md §4.9 step 2 ("take the best match with
// similarity ≥ 0.8"). Ties keep the first candidate seen, which is the
// earliest completed one, since CompletedQueriesSince orders rows by
// completed_at ascending.
func bestMatch(prompt string, candidates []*models.Query) (*models.Query, bool) {
	var best *models.Query
	bestScore := 0.0
	for _, q := range candidates {
		score := textsim.Jaccard(prompt, q.Prompt)
		if score >= Threshold && score > bestScore {
			best = q
			bestScore = score
		}
	}
	return best, best != nil
}
