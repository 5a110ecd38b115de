// Package repolife implements spec.md §4.5's repo lifecycle operations —
// add, freshness check, sync, and delete — by shelling out to git the way
// the teacher's internal/lifecycle package shells out to the ollama CLI:
// one runGit helper centralizing subprocess construction and error
// wrapping. The tests drive a real git binary against local repositories.
package repolife

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/pipeline"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/vectorstore"
	"github.com/breeze4/indiseek/pkg/models"
)

// Manager orchestrates a repo's on-disk clone alongside its relational,
// vector, and lexical store state.
type Manager struct {
	DB       *store.DB
	Vectors  *vectorstore.Manager
	Lexical  *lexstore.Manager
	ReposDir string
}

func NewManager(db *store.DB, vectors *vectorstore.Manager, lexical *lexstore.Manager, reposDir string) *Manager {
	return &Manager{DB: db, Vectors: vectors, Lexical: lexical, ReposDir: reposDir}
}

// AddRepo records the repo row, assigns it REPOS_DIR/{id} as its local
// clone path, and clones it synchronously. Callers that want the clone
// to happen in the background should invoke this from within a Task
// Manager task rather than directly on a request goroutine.
func (m *Manager) AddRepo(ctx context.Context, name, originURL string) (*models.Repo, error) {
	repo, err := m.DB.CreateRepo(name, originURL, "")
	if err != nil {
		return nil, err
	}

	localPath := filepath.Join(m.ReposDir, strconv.FormatInt(repo.ID, 10))
	if err := m.DB.UpdateRepoLocalPath(repo.ID, localPath); err != nil {
		return nil, err
	}
	repo.LocalPath = localPath

	if err := clone(ctx, originURL, localPath); err != nil {
		return nil, ierrors.Wrap(ierrors.PipelineErr, "add repo: clone", err)
	}

	sha, err := headSHA(ctx, localPath)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.PipelineErr, "add repo: read head sha", err)
	}
	if err := m.DB.UpdateRepoCommitState(repo.ID, sha, -1); err != nil {
		return nil, err
	}
	if err := m.DB.SetRepoStatus(repo.ID, models.RepoStatusActive); err != nil {
		return nil, err
	}

	repo.CurrentCommitSHA = sha
	repo.Status = models.RepoStatusActive
	return repo, nil
}

// FreshnessStatus is the repo-drift classification spec.md §4.5 names.
type FreshnessStatus string

const (
	FreshnessCurrent    FreshnessStatus = "current"
	FreshnessStale      FreshnessStatus = "stale"
	FreshnessNotIndexed FreshnessStatus = "not_indexed"
)

// Freshness is the synchronous result of a freshness check.
type Freshness struct {
	CurrentCommitSHA string
	CommitsBehind    int
	ChangedFiles     []string
	Status           FreshnessStatus
}

// CheckFreshness fetches origin, resolves its HEAD, and reports how far
// the repo's indexed state has drifted, without mutating any index.
func (m *Manager) CheckFreshness(ctx context.Context, repoID int64) (*Freshness, error) {
	repo, err := m.DB.GetRepo(repoID)
	if err != nil {
		return nil, err
	}

	if err := fetchOrigin(ctx, repo.LocalPath); err != nil {
		return nil, ierrors.Wrap(ierrors.PipelineErr, "freshness check: fetch", err)
	}
	currentSHA, err := remoteHeadSHA(ctx, repo.LocalPath)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.PipelineErr, "freshness check: resolve remote head", err)
	}

	result := &Freshness{CurrentCommitSHA: currentSHA}

	if repo.IndexedCommitSHA == "" {
		result.CommitsBehind = -1
		result.Status = FreshnessNotIndexed
	} else if repo.IndexedCommitSHA == currentSHA {
		result.CommitsBehind = 0
		result.Status = FreshnessCurrent
	} else {
		behind, err := commitsBetween(ctx, repo.LocalPath, repo.IndexedCommitSHA, currentSHA)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.PipelineErr, "freshness check: count commits behind", err)
		}
		result.CommitsBehind = behind
		if behind == 0 {
			result.Status = FreshnessCurrent
		} else {
			result.Status = FreshnessStale
		}

		files, err := changedFiles(ctx, repo.LocalPath, repo.IndexedCommitSHA, currentSHA)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.PipelineErr, "freshness check: diff changed files", err)
		}
		result.ChangedFiles = files
	}

	if err := m.DB.UpdateRepoCommitState(repoID, currentSHA, result.CommitsBehind); err != nil {
		return nil, err
	}
	return result, nil
}

// SyncOptions carries the pieces a Sync needs that repolife itself
// doesn't own: the chunker/provider bundle pipeline stages require, and
// an optional cross-reference stream to reload afterward.
type SyncOptions struct {
	Env   *pipeline.Env
	Xrefs io.Reader
}

// Sync pulls the latest commits, re-indexes only the files that changed,
// and always rebuilds the lexical index fully (spec.md §4.5: lexical and
// cross-reference data are not incrementally updatable). opts.Env must
// already point at repoID; opts.Xrefs, if non-nil, is decoded and
// replaces the repo's entire cross-reference data set after reindexing.
func (m *Manager) Sync(ctx context.Context, repoID int64, opts SyncOptions) (pipeline.Counts, error) {
	totals := pipeline.Counts{}

	repo, err := m.DB.GetRepo(repoID)
	if err != nil {
		return totals, err
	}

	beforeSHA := repo.IndexedCommitSHA
	if err := pullOrigin(ctx, repo.LocalPath); err != nil {
		return totals, ierrors.Wrap(ierrors.PipelineErr, "sync: pull", err)
	}
	afterSHA, err := headSHA(ctx, repo.LocalPath)
	if err != nil {
		return totals, ierrors.Wrap(ierrors.PipelineErr, "sync: read head sha", err)
	}
	if beforeSHA == "" {
		// Never indexed before: treat every tracked file as changed by
		// diffing against git's empty-tree sentinel.
		beforeSHA = emptyTreeSHA
	}

	changed, deleted, err := changedAndDeletedFiles(ctx, repo.LocalPath, beforeSHA, afterSHA)
	if err != nil {
		return totals, ierrors.Wrap(ierrors.PipelineErr, "sync: diff changed and deleted files", err)
	}

	for _, filePath := range deleted {
		if err := m.deleteFileRows(repoID, filePath); err != nil {
			return totals, err
		}
	}
	totals["deleted_files"] = len(deleted)

	for _, filePath := range changed {
		stageOpts := pipeline.StageOptions{PathFilter: filePath}
		if err := m.DB.DeleteFileSummary(repoID, filePath); err != nil {
			return totals, err
		}
		c, err := pipeline.Parse(ctx, opts.Env, stageOpts, nil)
		if err != nil {
			return totals, err
		}
		mergeCounts(totals, c)
	}
	totals["changed_files"] = len(changed)

	if len(changed) > 0 {
		c, err := pipeline.Embed(ctx, opts.Env, pipeline.StageOptions{}, nil)
		if err != nil {
			return totals, err
		}
		mergeCounts(totals, c)

		c, err = pipeline.SummarizeFiles(ctx, opts.Env, pipeline.StageOptions{}, nil)
		if err != nil {
			return totals, err
		}
		mergeCounts(totals, c)

		for _, dirPath := range affectedTopDirs(changed) {
			c, err = pipeline.SummarizeDirectories(ctx, opts.Env, pipeline.StageOptions{PathFilter: dirPath}, nil)
			if err != nil {
				return totals, err
			}
			mergeCounts(totals, c)
		}
	}

	c, err := pipeline.BuildLexical(ctx, opts.Env, pipeline.StageOptions{}, nil)
	if err != nil {
		return totals, err
	}
	mergeCounts(totals, c)

	if opts.Xrefs != nil {
		c, err := pipeline.LoadXrefs(ctx, opts.Env, opts.Xrefs, nil)
		if err != nil {
			return totals, err
		}
		mergeCounts(totals, c)
	}

	if err := m.DB.MarkRepoIndexed(repoID, afterSHA); err != nil {
		return totals, err
	}
	return totals, nil
}

// emptyTreeSHA is git's well-known hash of the empty tree, used as a diff
// base when a repo has never been indexed before.
const emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// deleteFileRows removes a deleted file's symbols, chunks, summary,
// content, and occurrences, and purges that file's chunk vectors from the
// vector store — otherwise deleting a file would leave its vectors behind
// in the HNSW index with no relational chunk row to back them, violating
// the invariant that every vector-store id has a matching chunk row.
func (m *Manager) deleteFileRows(repoID int64, filePath string) error {
	if err := m.DB.DeleteFileSymbols(repoID, filePath); err != nil {
		return err
	}
	chunkIDs, err := m.DB.DeleteFileChunks(repoID, filePath)
	if err != nil {
		return err
	}
	if len(chunkIDs) > 0 {
		if err := m.Vectors.DeleteByChunkIDs(repoID, chunkIDs); err != nil && !ierrors.OfKind(err, ierrors.NotFound) {
			return err
		}
	}
	if err := m.DB.DeleteFileSummary(repoID, filePath); err != nil {
		return err
	}
	if err := m.DB.DeleteFileContent(repoID, filePath); err != nil {
		return err
	}
	return m.DB.DeleteFileOccurrences(repoID, filePath)
}

func mergeCounts(dst, src pipeline.Counts) {
	for k, v := range src {
		dst[k] += v
	}
}

// affectedTopDirs returns the distinct top-level directory of every changed
// path, so Sync can scope SummarizeDirectories to the subtrees a changed
// file might actually affect instead of re-walking the whole repo on every
// sync. A top-level path (no "/") affects the repo root rather than any
// named directory and is skipped — directory summaries only cover named
// directories.
func affectedTopDirs(changed []string) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, p := range changed {
		i := strings.IndexByte(p, '/')
		if i < 0 {
			continue
		}
		top := p[:i]
		if !seen[top] {
			seen[top] = true
			dirs = append(dirs, top)
		}
	}
	return dirs
}

// DeleteRepo marks the repo deleted, removes its local clone and its
// vector/lexical store state, and cascade-deletes its relational rows.
func (m *Manager) DeleteRepo(repoID int64) error {
	repo, err := m.DB.GetRepo(repoID)
	if err != nil {
		return err
	}

	if err := m.Vectors.DeleteRepo(repoID); err != nil {
		return ierrors.Wrap(ierrors.PipelineErr, "delete repo: vector store", err)
	}
	if err := m.Lexical.DeleteRepo(repoID); err != nil {
		return ierrors.Wrap(ierrors.PipelineErr, "delete repo: lexical store", err)
	}
	if repo.LocalPath != "" {
		if err := os.RemoveAll(repo.LocalPath); err != nil {
			return ierrors.Wrap(ierrors.PipelineErr, "delete repo: remove clone", err)
		}
	}
	return m.DB.DeleteRepoCascade(repoID)
}
