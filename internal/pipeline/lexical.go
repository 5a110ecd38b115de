package pipeline

import (
	"context"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/lexstore"
)

// BuildLexical is stage 5: rebuild repoID's full-text index from every
// chunk currently on record. Unlike embed/summarize, this stage has no
// partial-progress notion — bleve's index build is cheap enough relative
// to the provider-backed stages that indiseek always rebuilds it whole,
// matching the vector store's own full Save-at-the-end pattern.
func BuildLexical(ctx context.Context, env *Env, opts StageOptions, progress ProgressFunc) (Counts, error) {
	counts := Counts{}

	chunks, err := env.DB.AllChunks(env.RepoID)
	if err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "build_lexical: list chunks", err)
	}
	if opts.PathFilter != "" {
		chunks = filterChunksByPath(chunks, opts.PathFilter)
	}

	select {
	case <-ctx.Done():
		return counts, ctx.Err()
	default:
	}

	if err := env.Lexical.Open(env.RepoID); err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "build_lexical: open index", err)
	}

	docs := make([]lexstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = lexstore.Document{
			ChunkID:    c.ID,
			FilePath:   c.FilePath,
			SymbolName: c.SymbolName,
			ChunkType:  string(c.ChunkType),
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Content:    c.Content,
		}
	}
	emit(progress, "build_lexical", 0, len(docs), "indexing")

	if err := env.Lexical.Build(env.RepoID, docs); err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "build_lexical: build index", err)
	}
	counts["indexed"] = len(docs)
	emit(progress, "build_lexical", len(docs), len(docs), "")

	return counts, nil
}
