package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/breeze4/indiseek/internal/agent"
	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/pipeline"
	"github.com/breeze4/indiseek/pkg/models"
)

// stageFuncs maps a /api/run/{stage} path segment to its pipeline stage.
// load_xrefs is deliberately absent here — it takes a byte stream instead
// of StageOptions and is dispatched separately in handleRunStage.
var stageFuncs = map[string]pipeline.StageFunc{
	"parse":                 pipeline.Parse,
	"embed":                 pipeline.Embed,
	"summarize_files":       pipeline.SummarizeFiles,
	"summarize_directories": pipeline.SummarizeDirectories,
	"build_lexical":         pipeline.BuildLexical,
}

type runStageRequest struct {
	PathFilter string `json:"path_filter"`
}

// handleRunStage schedules one named pipeline stage as a background task,
// scoped to repo_id and an optional path_filter.
func (s *Server) handleRunStage(w http.ResponseWriter, r *http.Request) error {
	repoID, err := repoIDFromQuery(r)
	if err != nil {
		return err
	}
	stageName := r.PathValue("stage")

	repo, err := s.DB.GetRepo(repoID)
	if err != nil {
		return err
	}

	// load_xrefs carries a binary body (spec.md §6 cross-reference index
	// format), not the {path_filter} JSON the other stages take. It is
	// read fully into memory here, before the task is scheduled, since
	// the request body is only valid for the lifetime of this handler —
	// the worker goroutine runs after this function returns.
	if stageName == "load_xrefs" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return ierrors.BadRequestf("reading request body: %s", err)
		}
		rec, err := s.Tasks.Submit(context.Background(), "load_xrefs", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
			env := s.pipelineEnv(repoID, repo.LocalPath)
			return pipeline.LoadXrefs(ctx, env, bytes.NewReader(body), func(ev models.ProgressEvent) { progress(ev) })
		})
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": rec.ID})
		return nil
	}

	var req runStageRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ierrors.BadRequestf("invalid request body: %s", err)
		}
	}

	stage, ok := stageFuncs[stageName]
	if !ok {
		return ierrors.BadRequestf("unknown stage %q", stageName)
	}

	rec, err := s.Tasks.Submit(context.Background(), stageName, func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		env := s.pipelineEnv(repoID, repo.LocalPath)
		opts := pipeline.StageOptions{PathFilter: req.PathFilter}
		return stage(ctx, env, opts, func(ev models.ProgressEvent) { progress(ev) })
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": rec.ID})
	return nil
}

type runQueryRequest struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode"`
	Force  bool   `json:"force"`
	RepoID int64  `json:"repo_id"`
}

// handleRunQuery implements the Query Cache's fast path directly on the
// request goroutine, falling through to a background task (the Agent
// Loop) on a miss — spec.md §4.9.
func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) error {
	req, repoID, err := decodeRunQueryRequest(r)
	if err != nil {
		return err
	}

	hit, err := s.Cache.Lookup(repoID, req.Prompt, req.Force)
	if err != nil {
		return err
	}
	if hit.Hit {
		writeJSON(w, http.StatusOK, map[string]any{
			"cached":   true,
			"answer":   hit.Answer,
			"evidence": hit.Evidence,
			"query_id": hit.QueryID,
		})
		return nil
	}

	rec, err := s.Tasks.Submit(context.Background(), "query", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		return s.runAgentQuery(ctx, repoID, req.Prompt, req.Mode, progress)
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": rec.ID})
	return nil
}

// handleQuerySync is the synchronous variant of handleRunQuery — it skips
// the Task Manager entirely and runs the Agent Loop on the request
// goroutine, for callers that would rather block than poll/stream.
func (s *Server) handleQuerySync(w http.ResponseWriter, r *http.Request) error {
	req, repoID, err := decodeRunQueryRequest(r)
	if err != nil {
		return err
	}

	hit, err := s.Cache.Lookup(repoID, req.Prompt, req.Force)
	if err != nil {
		return err
	}
	if hit.Hit {
		writeJSON(w, http.StatusOK, map[string]any{
			"cached":   true,
			"answer":   hit.Answer,
			"evidence": hit.Evidence,
			"query_id": hit.QueryID,
		})
		return nil
	}

	result, err := s.runAgentQuery(r.Context(), repoID, req.Prompt, req.Mode, nil)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

func decodeRunQueryRequest(r *http.Request) (runQueryRequest, int64, error) {
	var req runQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, 0, ierrors.BadRequestf("invalid request body: %s", err)
	}
	if req.Prompt == "" {
		return req, 0, ierrors.BadRequestf("prompt is required")
	}
	repoID := req.RepoID
	if repoID == 0 {
		var err error
		repoID, err = repoIDFromQuery(r)
		if err != nil {
			return req, 0, err
		}
	}
	return req, repoID, nil
}

// runAgentQuery records a running Query row, builds the strategy named by
// mode ("auto" when empty), executes it, and finalizes the row with the
// outcome — shared by the async and synchronous query endpoints.
func (s *Server) runAgentQuery(ctx context.Context, repoID int64, prompt, mode string, progress func(models.ProgressEvent)) (*models.Query, error) {
	strategyName := mode
	if strategyName == "" {
		strategyName = "auto"
	}

	queryID, err := s.DB.CreateRunningQuery(repoID, prompt, strategyName)
	if err != nil {
		return nil, err
	}

	repoMap, err := s.Tools.ReadMap(repoID, "")
	if err != nil {
		_ = s.DB.FailQuery(queryID, err.Error())
		return nil, err
	}

	deps := agent.Deps{
		RepoID:   repoID,
		Registry: s.Registry,
		Chat:     s.Chat,
		Model:    s.Config.ActiveChatModel(),
		Prices:   s.Prices,
		RepoMap:  repoMap,
	}

	run, err := s.Strategies.Build(strategyName, deps, prompt)
	if err != nil {
		_ = s.DB.FailQuery(queryID, err.Error())
		return nil, err
	}

	start := time.Now()
	result, err := run(ctx, prompt, func(ev models.ProgressEvent) {
		if progress != nil {
			progress(ev)
		}
	})
	duration := time.Since(start).Seconds()

	if err != nil {
		_ = s.DB.FailQuery(queryID, err.Error())
		return nil, err
	}
	if result.Error != "" {
		_ = s.DB.FailQuery(queryID, result.Error)
		return nil, ierrors.New(ierrors.Internal, fmt.Sprintf("agent run failed: %s", result.Error))
	}

	cost := s.Prices.EstimateCost(deps.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	if err := s.DB.CompleteQuery(queryID, result.Answer, result.Evidence, duration,
		result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.ThinkingTokens, cost); err != nil {
		return nil, err
	}

	return s.DB.GetQuery(queryID)
}
