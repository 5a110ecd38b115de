package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/vectorstore"
	"github.com/breeze4/indiseek/pkg/models"
)

const (
	embedBatchSize       = 32
	embedMaxRetries      = 3
	embedMaxConsecFail   = 3
	embedRetryBaseDelay  = 500 * time.Millisecond
	embedBatchConcurrent = 4
)

// Embed is stage 3: find chunks with no vector yet, batch them to the
// embedding provider, and upsert the results into the per-repo vector
// table. Batches run with bounded concurrency via errgroup — the
// embedding client is the only stage whose provider calls spec.md §5
// allows to run in parallel. Auth errors abort immediately; any
// embedMaxConsecFail consecutive batch failures (after per-batch
// retries) also abort.
func Embed(ctx context.Context, env *Env, opts StageOptions, progress ProgressFunc) (Counts, error) {
	counts := Counts{}

	if err := env.Vectors.Open(env.RepoID, env.EmbedDims); err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "embed: open vector index", err)
	}

	haveIDs, err := env.Vectors.AllChunkIDs(env.RepoID)
	if err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "embed: list existing vectors", err)
	}
	have := make(map[int64]bool, len(haveIDs))
	for _, id := range haveIDs {
		have[id] = true
	}

	pending, err := env.DB.ChunksWithoutVector(env.RepoID, have)
	if err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "embed: list pending chunks", err)
	}
	if opts.PathFilter != "" {
		pending = filterChunksByPath(pending, opts.PathFilter)
	}
	counts["pending"] = len(pending)

	batches := batchChunks(pending, embedBatchSize)
	if len(batches) == 0 {
		return counts, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedBatchConcurrent)

	var mu sync.Mutex
	var consecFailures, embedded, batchFailures, done int

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			vectors, err := embedBatchWithRetry(gctx, env, batch)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				if ierrors.OfKind(err, ierrors.ProviderAuthError) {
					return err
				}
				batchFailures++
				consecFailures++
				if consecFailures >= embedMaxConsecFail {
					return ierrors.Wrap(ierrors.PipelineErr, "embed: too many consecutive batch failures", err)
				}
				emit(progress, "embed", done, len(batches), "batch failed, continuing")
				return nil
			}
			consecFailures = 0

			rows := make([]vectorstore.Row, len(batch))
			for j, c := range batch {
				rows[j] = vectorstore.Row{ChunkID: c.ID, Vector: vectors[j]}
			}
			if err := env.Vectors.Upsert(env.RepoID, rows); err != nil {
				return ierrors.Wrap(ierrors.PipelineErr, "embed: upsert vectors", err)
			}
			embedded += len(batch)
			emit(progress, "embed", done, len(batches), "")
			return nil
		})
	}

	waitErr := g.Wait()
	counts["embedded"] = embedded
	counts["batch_failures"] = batchFailures
	if waitErr != nil {
		return counts, waitErr
	}

	if err := env.Vectors.Save(env.RepoID); err != nil {
		return counts, ierrors.Wrap(ierrors.PipelineErr, "embed: persist vector index", err)
	}

	return counts, nil
}

func filterChunksByPath(chunks []*models.Chunk, pathFilter string) []*models.Chunk {
	prefix := strings.TrimSuffix(pathFilter, "/") + "/"
	out := make([]*models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.FilePath == pathFilter || strings.HasPrefix(c.FilePath, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func batchChunks(chunks []*models.Chunk, size int) [][]*models.Chunk {
	var batches [][]*models.Chunk
	for i := 0; i < len(chunks); i += size {
		end := i + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[i:end])
	}
	return batches
}

// embedBatchWithRetry calls the embedding provider for one batch,
// retrying transient errors with exponential backoff. Auth errors are
// returned immediately without retrying.
func embedBatchWithRetry(ctx context.Context, env *Env, batch []*models.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	var lastErr error
	delay := embedRetryBaseDelay
	for attempt := 0; attempt <= embedMaxRetries; attempt++ {
		vectors, err := env.Embedder.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if ierrors.OfKind(err, ierrors.ProviderAuthError) {
			return nil, err
		}
		if attempt == embedMaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}
