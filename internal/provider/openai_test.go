package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/ierrors"
)

func TestOpenAIProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Input, 2)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.2, 0.3}},
				{"index": 0, "embedding": []float32{0.1, 0.1}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "", "", 2)
	p.baseURL = srv.URL

	vectors, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.1}, vectors[0])
	assert.Equal(t, []float32{0.2, 0.3}, vectors[1])
}

func TestOpenAIProvider_Embed_NoAPIKey(t *testing.T) {
	p := NewOpenAIProvider("", "", "", 0)
	_, err := p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, ierrors.OfKind(err, ierrors.ProviderAuthError))
}

func TestOpenAIProvider_Chat_WithToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tools, ok := body["tools"].([]any)
		require.True(t, ok)
		require.Len(t, tools, 1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id": "call_1",
								"function": map[string]any{
									"name":      "search_code",
									"arguments": `{"query":"parse"}`,
								},
							},
						},
					},
				},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o-mini", "", 0)
	p.baseURL = srv.URL

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "find the parser"}},
		Tools:    []ToolSpec{{Name: "search_code", Description: "search", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "search_code", resp.ToolCalls[0].Name)
	assert.Equal(t, `{"query":"parse"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, "tool_calls", resp.StopReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestOpenAIProvider_Chat_NonOKStatusClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key"},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("bad-key", "", "", 0)
	p.baseURL = srv.URL

	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.True(t, ierrors.OfKind(err, ierrors.ProviderAuthError))
}
