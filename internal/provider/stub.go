package provider

import (
	"context"
	"strings"
)

// StubProvider is the zero-configuration fallback used when a provider's
// API key is absent, grounded on reposearch's StubClient: deterministic
// zero vectors for Embed, and a heuristic comment-sniffing summary for
// Chat's file-summarization use. It never errors, so pipeline stages can
// keep running against a repo with no configured provider rather than
// failing outright; the HTTP layer decides separately whether an
// endpoint that genuinely requires a real model should 400 instead of
// falling back to this.
type StubProvider struct {
	dims int
}

func NewStubProvider(dims int) *StubProvider {
	if dims == 0 {
		dims = 8
	}
	return &StubProvider{dims: dims}
}

func (s *StubProvider) Dimensions() int { return s.dims }

func (s *StubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

func (s *StubProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var user string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			user = req.Messages[i].Content
			break
		}
	}

	for _, line := range strings.SplitN(user, "\n", 6) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			if len(line) > 10 {
				return &ChatResponse{Content: line, StopReason: "stop"}, nil
			}
		}
	}

	return &ChatResponse{Content: "no summary available (stub provider)", StopReason: "stop"}, nil
}
