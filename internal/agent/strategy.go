package agent

import (
	"context"
	"strings"

	"github.com/breeze4/indiseek/internal/ierrors"
)

// Registry maps a strategy name to its factory. DefaultRegistry builds
// the populated instance the server uses.
type Registry struct {
	factories map[string]StrategyFactory
	order     []string // registration order, for a stable /api/strategies listing
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StrategyFactory)}
}

func (r *Registry) register(name string, f StrategyFactory) {
	if _, exists := r.factories[name]; !exists {
		r.order = append(r.order, name)
	}
	r.factories[name] = f
}

// Names returns every registered strategy name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Build resolves name to a RunFunc bound to deps. "auto" applies a
// heuristic over the prompt text; any other unregistered name is
// BadRequest.
func (r *Registry) Build(name string, deps Deps, prompt string) (RunFunc, error) {
	if name == "" || name == "auto" {
		name = chooseStrategy(prompt)
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, ierrors.BadRequestf("agent: unknown strategy %q", name)
	}
	return factory(deps), nil
}

// chooseStrategy is the "auto" heuristic: a prompt that looks multi-part
// (joins two asks with "and", carries more than one question mark, or
// simply runs long) gets the classic loop's larger budget and critique
// step; anything shorter and single-shaped gets the cheap single-pass
// strategy. "multi" is never auto-selected — it is only reached by
// naming it explicitly.
func chooseStrategy(prompt string) string {
	p := strings.ToLower(prompt)
	if strings.Contains(p, " and ") || strings.Count(p, "?") > 1 || len(prompt) > 120 {
		return "classic"
	}
	return "single"
}

// DefaultRegistry builds the three stock strategies: single (fast,
// minimal budget, no critique), classic (standard ReAct-style budget
// with one critique pass), multi (larger budget, and its one critique
// pass comes earlier, after 3 tool calls instead of 4, for broad or
// comparative questions).
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.register("single", func(deps Deps) RunFunc {
		cfg := loopConfig{maxIterations: 12, synthesisMargin: 2, critiqueThreshold: 0}
		return func(ctx context.Context, prompt string, progress ProgressFunc) (*QueryResult, error) {
			return runLoop(ctx, deps, prompt, progress, cfg)
		}
	})

	r.register("classic", func(deps Deps) RunFunc {
		cfg := loopConfig{maxIterations: 16, synthesisMargin: 2, critiqueThreshold: 4}
		return func(ctx context.Context, prompt string, progress ProgressFunc) (*QueryResult, error) {
			return runLoop(ctx, deps, prompt, progress, cfg)
		}
	})

	r.register("multi", func(deps Deps) RunFunc {
		cfg := loopConfig{maxIterations: 20, synthesisMargin: 3, critiqueThreshold: 3}
		return func(ctx context.Context, prompt string, progress ProgressFunc) (*QueryResult, error) {
			return runLoop(ctx, deps, prompt, progress, cfg)
		}
	})

	return r
}
