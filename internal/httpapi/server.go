// Package httpapi wires indiseek's stores and services to the HTTP
// routes in spec.md §6, on net/http.ServeMux with Go 1.22+ method+pattern
// routing — the teacher's MCP/daemon servers reach for the standard
// library over a router framework (internal/daemon/server.go dispatches
// by a string method field the same way this package dispatches by
// ServeMux pattern), and reposearch's cmd/api/main.go confirms the same
// preference for a plain mux over gorilla/chi in this corpus.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/breeze4/indiseek/internal/agent"
	"github.com/breeze4/indiseek/internal/cache"
	"github.com/breeze4/indiseek/internal/config"
	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/parse"
	"github.com/breeze4/indiseek/internal/pipeline"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/internal/repolife"
	"github.com/breeze4/indiseek/internal/retrieval"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/task"
	"github.com/breeze4/indiseek/internal/vectorstore"
)

// Server bundles every dependency an HTTP handler needs. One Server
// instance serves every repo; repo-scoped handlers take repo_id off the
// request.
type Server struct {
	Config     *config.Config
	DB         *store.DB
	Vectors    *vectorstore.Manager
	Lexical    *lexstore.Manager
	Chunker    *parse.Chunker
	Repolife   *repolife.Manager
	Tasks      *task.Manager
	Cache      *cache.Cache
	Chat       provider.ChatProvider
	Embedder   provider.EmbeddingProvider
	Tools      *retrieval.Tools
	Registry   *retrieval.Registry
	Strategies *agent.Registry
	Prices     agent.PriceTable
	Log        *slog.Logger
}

// Routes builds the full route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/repos", s.wrap(s.handleListRepos))
	mux.HandleFunc("POST /api/repos", s.wrap(s.handleCreateRepo))
	mux.HandleFunc("GET /api/repos/{id}", s.wrap(s.handleGetRepo))
	mux.HandleFunc("DELETE /api/repos/{id}", s.wrap(s.handleDeleteRepo))
	mux.HandleFunc("POST /api/repos/{id}/check", s.wrap(s.handleCheckRepo))
	mux.HandleFunc("POST /api/repos/{id}/sync", s.wrap(s.handleSyncRepo))

	mux.HandleFunc("GET /api/stats", s.wrap(s.handleStats))
	mux.HandleFunc("GET /api/tree", s.wrap(s.handleTree))
	mux.HandleFunc("GET /api/files/{path...}", s.wrap(s.handleFile))
	mux.HandleFunc("GET /api/chunks/{id}", s.wrap(s.handleChunk))
	mux.HandleFunc("GET /api/search", s.wrap(s.handleSearch))

	mux.HandleFunc("POST /api/run/{stage}", s.wrap(s.handleRunStage))
	mux.HandleFunc("POST /api/run/query", s.wrap(s.handleRunQuery))
	mux.HandleFunc("POST /api/query", s.wrap(s.handleQuerySync))
	mux.HandleFunc("GET /api/queries", s.wrap(s.handleListQueries))
	mux.HandleFunc("GET /api/queries/{id}", s.wrap(s.handleGetQuery))
	mux.HandleFunc("GET /api/strategies", s.wrap(s.handleStrategies))

	mux.HandleFunc("GET /api/tasks", s.wrap(s.handleListTasks))
	mux.HandleFunc("GET /api/tasks/{id}", s.wrap(s.handleGetTask))
	mux.HandleFunc("GET /api/tasks/{id}/stream", s.wrap(s.handleStreamTask))

	return s.accessLog(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// accessLog wraps h with a slog line per request: method, path, status,
// duration — the teacher's structured-logging register (internal/logging),
// applied here at the transport boundary rather than the process boundary.
func (s *Server) accessLog(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r)
		s.Log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("dur", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// apiHandler is a handler that may fail; wrap translates its error (if
// any) into a JSON error response via ierrors.Kind, so individual
// handlers never format HTTP status codes themselves.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

func (s *Server) wrap(h apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an *ierrors.Error's Kind to an HTTP status; any other
// error shape (should not normally reach here) becomes a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if ierrors.OfKind(err, ierrors.NotFound) {
		status = http.StatusNotFound
	} else if ierrors.OfKind(err, ierrors.Conflict) {
		status = http.StatusConflict
	} else if ierrors.OfKind(err, ierrors.BadRequest) {
		status = http.StatusBadRequest
	} else if ierrors.OfKind(err, ierrors.ProviderAuthError) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// pipelineEnv builds the Env a pipeline stage or repolife.Sync needs for
// repoID, wiring the shared provider/store handles onto that one repo.
func (s *Server) pipelineEnv(repoID int64, repoPath string) *pipeline.Env {
	return &pipeline.Env{
		DB:        s.DB,
		Vectors:   s.Vectors,
		Lexical:   s.Lexical,
		Chunker:   s.Chunker,
		Embedder:  s.Embedder,
		Generator: s.Chat,
		RepoID:    repoID,
		RepoPath:  repoPath,
		EmbedDims: s.Embedder.Dimensions(),
	}
}
