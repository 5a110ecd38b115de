package retrieval

import (
	"context"
	"fmt"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/internal/provider"
)

// ToolInfo describes one registered tool for listing (the agent loop's
// tool-calling request, and the HTTP /api/strategies-adjacent tool
// introspection), grounded on the teacher's mcp.Server.ListTools /
// CallTool split (internal/mcp/server.go) — generalized here from
// MCP-protocol dispatch to the agent loop's internal dispatch, per
// the "dynamic tool dispatch" design note.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// toolFunc is one tool's implementation, bound to a repo and raw args.
type toolFunc func(ctx context.Context, repoID int64, args map[string]any) (string, error)

// Registry is the name -> implementation map the agent loop dispatches
// tool calls through, instead of a hardcoded switch.
type Registry struct {
	tools    *Tools
	embedder provider.EmbeddingProvider
	infos    map[string]ToolInfo
	impls    map[string]toolFunc
	order    []string
}

// NewRegistry builds the standard four-tool registry. embedder may be
// nil — search_code's semantic mode then fails per-call with BadRequest,
// and hybrid mode returns the lexical results alone, rather than either
// failing at registry construction time.
func NewRegistry(tools *Tools, embedder provider.EmbeddingProvider) *Registry {
	r := &Registry{
		tools:    tools,
		embedder: embedder,
		infos:    make(map[string]ToolInfo),
		impls:    make(map[string]toolFunc),
	}

	r.add(ToolInfo{
		Name:        "read_map",
		Description: "Return a plain-text directory outline of the repo, annotated with file and directory summaries. Call this first to orient before searching.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Subdirectory to scope the outline to; empty means the whole repo."},
			},
		},
	}, func(ctx context.Context, repoID int64, args map[string]any) (string, error) {
		return r.tools.ReadMap(repoID, stringArg(args, "path"))
	})

	r.add(ToolInfo{
		Name:        "search_code",
		Description: "Search the indexed code by meaning (semantic), keyword (lexical), or both fused (hybrid). Returns ranked chunk previews.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"mode":  map[string]any{"type": "string", "enum": []string{"semantic", "lexical", "hybrid"}},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		},
	}, func(ctx context.Context, repoID int64, args map[string]any) (string, error) {
		query := stringArg(args, "query")
		if query == "" {
			return "", ierrors.BadRequestf("search_code: query is required")
		}
		mode := SearchMode(stringArg(args, "mode"))
		if mode == "" {
			mode = ModeHybrid
		}
		limit := intArg(args, "limit")
		if limit == 0 {
			limit = 10
		}
		hits, err := r.tools.SearchCode(ctx, repoID, r.embedder, query, mode, limit)
		if err != nil {
			return "", err
		}
		return formatSearchHits(hits), nil
	})

	r.add(ToolInfo{
		Name:        "resolve_symbol",
		Description: "Look up a symbol's definition, references, callers, or callees. Ambiguous names are reported as a list rather than guessed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":   map[string]any{"type": "string"},
				"action": map[string]any{"type": "string", "enum": []string{"definition", "references", "callers", "callees"}},
			},
			"required": []string{"name", "action"},
		},
	}, func(ctx context.Context, repoID int64, args map[string]any) (string, error) {
		name := stringArg(args, "name")
		action := ResolveAction(stringArg(args, "action"))
		if name == "" || action == "" {
			return "", ierrors.BadRequestf("resolve_symbol: name and action are required")
		}
		return r.tools.ResolveSymbol(repoID, name, action)
	})

	r.add(ToolInfo{
		Name:        "read_file",
		Description: "Read a slice of an indexed file's content, with line numbers. Short ranges are expanded with surrounding context.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":       map[string]any{"type": "string"},
				"start_line": map[string]any{"type": "integer"},
				"end_line":   map[string]any{"type": "integer"},
			},
			"required": []string{"path"},
		},
	}, func(ctx context.Context, repoID int64, args map[string]any) (string, error) {
		path := stringArg(args, "path")
		if path == "" {
			return "", ierrors.BadRequestf("read_file: path is required")
		}
		return r.tools.ReadFile(repoID, path, intArg(args, "start_line"), intArg(args, "end_line"))
	})

	return r
}

func (r *Registry) add(info ToolInfo, fn toolFunc) {
	if _, exists := r.infos[info.Name]; !exists {
		r.order = append(r.order, info.Name)
	}
	r.infos[info.Name] = info
	r.impls[info.Name] = fn
}

// ListTools returns every registered tool's description, in registration
// order — stable output for the agent loop's tool-spec payload.
func (r *Registry) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(r.order))
	for i, name := range r.order {
		out[i] = r.infos[name]
	}
	return out
}

// Call dispatches one tool invocation by name.
func (r *Registry) Call(ctx context.Context, repoID int64, name string, args map[string]any) (string, error) {
	fn, ok := r.impls[name]
	if !ok {
		return "", ierrors.BadRequestf("unknown tool %q", name)
	}
	return fn(ctx, repoID, args)
}

func formatSearchHits(hits []SearchHit) string {
	if len(hits) == 0 {
		return "no matches"
	}
	var out string
	for _, h := range hits {
		out += fmt.Sprintf("%s:%d-%d  %s [%s]\n%s\n\n", h.FilePath, h.StartLine, h.EndLine, h.Symbol, h.MatchType, h.Preview)
	}
	return out
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
