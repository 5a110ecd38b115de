// Package pipeline implements indiseek's five indexing stages: parse,
// load-xrefs, embed, summarize (file then directory), and build-lexical.
// Each stage is a pure function of (repo_id, store handles) grounded on
// the teacher's internal/indexer package shape — a worker that takes a
// context, a handle bundle, and a progress callback, returning a count
// summary for logging instead of writing to stdout itself.
package pipeline

import (
	"context"

	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/parse"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/vectorstore"
	"github.com/breeze4/indiseek/pkg/models"
)

// Env bundles every store and external-service handle a stage might
// need. Stages only use the fields relevant to them; Env exists so the
// Task Manager can build one bundle per repo and hand it to whichever
// stage a caller requested.
type Env struct {
	DB        *store.DB
	Vectors   *vectorstore.Manager
	Lexical   *lexstore.Manager
	Chunker   *parse.Chunker
	Embedder  provider.EmbeddingProvider
	Generator provider.ChatProvider
	RepoID    int64
	RepoPath  string
	EmbedDims int
}

// ProgressFunc receives one progress event as a stage works through its
// input. current/total are 1-indexed counters; total is 0 when the
// stage doesn't know its denominator up front.
type ProgressFunc func(event models.ProgressEvent)

// Counts is a stage's summary result: event names to counts, e.g.
// {"files_parsed": 12, "errors": 1}.
type Counts map[string]int

// StageOptions are the per-invocation knobs a caller (HTTP handler or
// Task Manager) may set.
type StageOptions struct {
	// PathFilter scopes parse/embed to a subtree, relative to the repo
	// root. Empty means the whole repo.
	PathFilter string
}

// StageFunc is the shape every pipeline stage implements.
type StageFunc func(ctx context.Context, env *Env, opts StageOptions, progress ProgressFunc) (Counts, error)

func emit(progress ProgressFunc, stage string, current, total int, subject string) {
	if progress == nil {
		return
	}
	progress(models.ProgressEvent{Stage: stage, Current: current, Total: total, Subject: subject})
}
