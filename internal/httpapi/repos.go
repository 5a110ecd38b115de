package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/repolife"
	"github.com/breeze4/indiseek/pkg/models"
)

// repoIDFromQuery reads repo_id from the query string, defaulting to 1 per
// spec.md §4.10 ("All endpoints accept repo_id (default 1)").
func repoIDFromQuery(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("repo_id")
	if v == "" {
		return 1, nil
	}
	return parseRepoID(v)
}

// repoIDFromPath reads the {id} path segment used by /api/repos/{id}
// and its sub-routes.
func repoIDFromPath(r *http.Request) (int64, error) {
	return parseRepoID(r.PathValue("id"))
}

func parseRepoID(v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, ierrors.BadRequestf("invalid repo id %q", v)
	}
	return id, nil
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) error {
	repos, err := s.DB.ListRepos(false)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, repos)
	return nil
}

type createRepoRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// handleCreateRepo schedules the clone as a background task — cloning
// shells out to git and can take a while for a large repository, so it
// never runs on the request goroutine. The repo row itself is created
// inside the task, in status cloning, before the clone runs; a failed
// clone leaves that row in status cloning.
func (s *Server) handleCreateRepo(w http.ResponseWriter, r *http.Request) error {
	var req createRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ierrors.BadRequestf("invalid request body: %s", err)
	}
	if req.Name == "" || req.URL == "" {
		return ierrors.BadRequestf("name and url are required")
	}

	rec, err := s.Tasks.Submit(context.Background(), "add_repo", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		progress(models.ProgressEvent{Stage: "clone", Current: 0, Total: 1, Subject: req.Name})
		repo, err := s.Repolife.AddRepo(ctx, req.Name, req.URL)
		if err != nil {
			return nil, err
		}
		progress(models.ProgressEvent{Stage: "clone", Current: 1, Total: 1, Subject: req.Name})
		return repo, nil
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": rec.ID})
	return nil
}

func (s *Server) handleGetRepo(w http.ResponseWriter, r *http.Request) error {
	id, err := repoIDFromPath(r)
	if err != nil {
		return err
	}
	repo, err := s.DB.GetRepo(id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, repo)
	return nil
}

// handleDeleteRepo removes the repo's clone, vector/lexical store state,
// and relational rows synchronously — spec.md gives delete no async
// variant, unlike clone and sync.
func (s *Server) handleDeleteRepo(w http.ResponseWriter, r *http.Request) error {
	id, err := repoIDFromPath(r)
	if err != nil {
		return err
	}
	if err := s.Repolife.DeleteRepo(id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// handleCheckRepo runs a synchronous freshness check: fetch origin,
// compare SHAs, diff changed files. It never mutates index state.
// indexed_sha is read before the check runs, since CheckFreshness only
// ever updates the repo's current/commits-behind fields, never the
// indexed sha — that only changes on a completed Sync.
func (s *Server) handleCheckRepo(w http.ResponseWriter, r *http.Request) error {
	id, err := repoIDFromPath(r)
	if err != nil {
		return err
	}
	repo, err := s.DB.GetRepo(id)
	if err != nil {
		return err
	}
	fresh, err := s.Repolife.CheckFreshness(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"indexed_sha":    repo.IndexedCommitSHA,
		"current_sha":    fresh.CurrentCommitSHA,
		"commits_behind": fresh.CommitsBehind,
		"changed_files":  fresh.ChangedFiles,
		"status":         fresh.Status,
	})
	return nil
}

// handleSyncRepo schedules an incremental re-index as a background task.
func (s *Server) handleSyncRepo(w http.ResponseWriter, r *http.Request) error {
	id, err := repoIDFromPath(r)
	if err != nil {
		return err
	}
	repo, err := s.DB.GetRepo(id)
	if err != nil {
		return err
	}

	rec, err := s.Tasks.Submit(context.Background(), "sync", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		env := s.pipelineEnv(id, repo.LocalPath)
		counts, err := s.Repolife.Sync(ctx, id, repolife.SyncOptions{Env: env})
		progress(models.ProgressEvent{Stage: "sync", Current: 1, Total: 1})
		if err != nil {
			return nil, err
		}
		return counts, nil
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": rec.ID})
	return nil
}
