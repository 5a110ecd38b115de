package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_Chat_WithToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "you are helpful", body["system"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stop_reason": "tool_use",
			"content": []map[string]any{
				{"type": "text", "text": "looking that up"},
				{"type": "tool_use", "id": "toolu_1", "name": "resolve_symbol", "input": map[string]any{"symbol": "Foo"}},
			},
			"usage": map[string]any{"input_tokens": 20, "output_tokens": 8},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", "")
	p.baseURL = srv.URL

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "you are helpful"},
			{Role: "user", Content: "what is Foo"},
		},
		Tools: []ToolSpec{{Name: "resolve_symbol", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "looking that up", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "resolve_symbol", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"symbol":"Foo"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 28, resp.Usage.TotalTokens)
}

func TestAnthropicProvider_Chat_NoAPIKey(t *testing.T) {
	p := NewAnthropicProvider("", "")
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
}
