// Package provider abstracts the three external model backends indiseek
// can talk to (Gemini, OpenAI, Anthropic) behind two narrow contracts,
// grounded on the teacher's external-service adapter pattern and on
// seanblong-reposearch's internal/ai package (Client interface,
// ClientConfig, per-backend adapters, a zero-config Stub fallback).
// reposearch only needed Embed/Summarize; indiseek's agent loop also
// drives tool-calling chat completions, so Chat carries a richer
// request/response shape than reposearch's plain string-in-string-out
// Summarize.
package provider

import "context"

// EmbeddingProvider turns text into vectors for the vector store.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the vector width this provider produces.
	Dimensions() int
}

// ChatProvider drives a chat/completions model, optionally offering it a
// set of callable tools for the agent loop, and optionally constraining
// its output to a short, code-summarizer-style response for the
// pipeline's summarize stages.
type ChatProvider interface {
	// Chat sends a message sequence (and optional tool definitions) to
	// the model and returns its reply: text, requested tool calls, and
	// token usage.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Message is one turn in a chat exchange.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	ToolCallID string     // set on a "tool" role message: which call this answers
	ToolCalls  []ToolCall // set on an "assistant" message that requested tools
}

// ToolSpec describes one tool the model may call, in JSON-Schema form.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// ToolCall is one invocation the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object, as the model emitted it
}

// ChatRequest is one call to ChatProvider.Chat.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int
}

// Usage is token accounting for one Chat call, surfaced to the agent
// loop's running totals and the HTTP layer's per-request usage report.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is one model reply.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
	// StopReason is the provider's own token for why generation stopped
	// ("stop", "tool_calls", "length", ...), passed through unmodified.
	StopReason string
}
