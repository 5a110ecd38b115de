package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/breeze4/indiseek/internal/ierrors"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to the OpenAI chat completions and embeddings
// endpoints over plain net/http, grounded on reposearch's OpenAIClient:
// same Bearer-auth header, same non-200-is-an-error handling, extended
// here to carry tool definitions and tool_calls through Chat.
type OpenAIProvider struct {
	apiKey  string
	model   string
	embed   string
	dims    int
	baseURL string
	http    *http.Client
}

// NewOpenAIProvider builds an adapter for the given model names. embedModel
// and dims may be empty/zero to fall back to the provider's defaults.
func NewOpenAIProvider(apiKey, chatModel, embedModel string, dims int) *OpenAIProvider {
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	if dims == 0 {
		dims = 1536
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   chatModel,
		embed:   embedModel,
		dims:    dims,
		baseURL: openAIBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OpenAIProvider) Dimensions() int { return p.dims }

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, ierrors.New(ierrors.ProviderAuthError, "openai: OPENAI_API_KEY unset")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	payload := map[string]any{
		"input": texts,
		"model": p.embed,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "openai: encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", &buf)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "openai: build embed request", err)
	}
	p.setHeaders(req)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ProviderTransientErr, "openai: embed request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("openai", resp)
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, ierrors.Wrap(ierrors.ProviderTransientErr, "openai: decode embed response", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, ierrors.New(ierrors.ProviderAuthError, "openai: OPENAI_API_KEY unset")
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	payload := map[string]any{
		"model":    model,
		"messages": toOpenAIMessages(req.Messages),
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		payload["tools"] = toOpenAITools(req.Tools)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "openai: encode chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Internal, "openai: build chat request", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ProviderTransientErr, "openai: chat request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("openai", resp)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, ierrors.Wrap(ierrors.ProviderTransientErr, "openai: decode chat response", err)
	}
	if len(out.Choices) == 0 {
		return nil, ierrors.New(ierrors.ProviderTransientErr, "openai: no choices returned")
	}

	choice := out.Choices[0]
	calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}

	return &ChatResponse{
		Content:    choice.Message.Content,
		ToolCalls:  calls,
		StopReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
}

func toOpenAIMessages(msgs []Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		entry := map[string]any{"role": m.Role, "content": m.Content}
		if m.ToolCallID != "" {
			entry["tool_call_id"] = m.ToolCallID
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				})
			}
			entry["tool_calls"] = calls
		}
		out = append(out, entry)
	}
	return out
}

func toOpenAITools(tools []ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return out
}

// statusError reads a small JSON error envelope off a non-2xx response,
// falling back to the plain HTTP status text, and classifies it so
// callers can distinguish auth failures (don't retry) from transient
// ones (do).
func statusError(provider string, resp *http.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	msg := body.Error.Message
	if msg == "" {
		msg = resp.Status
	}

	kind := ierrors.ProviderTransientErr
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = ierrors.ProviderAuthError
	}
	return ierrors.New(kind, fmt.Sprintf("%s: %s", provider, msg))
}
