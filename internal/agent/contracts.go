// Package agent drives a chat completion model through the four
// retrieval tools to answer a natural-language question about an indexed
// repo. The loop shape (bounded iterations, tool dispatch, a synthesis
// phase that disables tools near the end) is grounded on the teacher's
// ChatProvider tool-calling contract (internal/provider): indiseek never
// talks to a model directly, it always goes through that contract, so
// the loop here is the one piece of new "client" code built on top of an
// already-teacher-shaped adapter layer.
package agent

import (
	"context"

	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/internal/retrieval"
	"github.com/breeze4/indiseek/pkg/models"
)

// UsageStats accumulates token usage and estimated cost across every
// model turn in one run.
type UsageStats struct {
	PromptTokens     int
	CompletionTokens int
	ThinkingTokens   int
	EstimatedCost    float64
}

// QueryResult is the outcome of one agent run: either a text answer or a
// partial result carrying the error that aborted the loop.
type QueryResult struct {
	Answer   string
	Evidence []models.EvidenceStep
	Usage    UsageStats
	Error    string
}

// ProgressFunc reports loop progress (one call per iteration) to an
// optional caller-supplied sink — the Task Manager's progress channel
// when a run executes as a background task.
type ProgressFunc func(models.ProgressEvent)

// RunFunc answers one prompt against an opened repo. progress may be nil.
type RunFunc func(ctx context.Context, prompt string, progress ProgressFunc) (*QueryResult, error)

// StrategyFactory builds a RunFunc bound to one repo's tools and model.
type StrategyFactory func(deps Deps) RunFunc

// Deps is everything a strategy needs to answer a query for one repo.
type Deps struct {
	RepoID   int64
	Registry *retrieval.Registry
	Chat     provider.ChatProvider
	Model    string
	Prices   PriceTable
	RepoMap  string // pre-fetched read_map output, seeded into the system turn
}
