package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/config"
)

func TestNewChatProvider_FallsBackToStubWithoutAPIKey(t *testing.T) {
	cfg := &config.Config{LLMProvider: config.ProviderOpenAI}
	p, err := NewChatProvider(context.Background(), cfg)
	require.NoError(t, err)
	_, ok := p.(*StubProvider)
	assert.True(t, ok, "expected stub fallback when OPENAI_API_KEY is unset")
}

func TestNewChatProvider_BuildsOpenAIWhenKeyPresent(t *testing.T) {
	cfg := &config.Config{LLMProvider: config.ProviderOpenAI, OpenAI: config.ProviderConfig{APIKey: "sk-test"}}
	p, err := NewChatProvider(context.Background(), cfg)
	require.NoError(t, err)
	_, ok := p.(*OpenAIProvider)
	assert.True(t, ok)
}

func TestNewChatProvider_BuildsAnthropicWhenKeyPresent(t *testing.T) {
	cfg := &config.Config{LLMProvider: config.ProviderAnthropic, Anthropic: config.ProviderConfig{APIKey: "sk-ant-test"}}
	p, err := NewChatProvider(context.Background(), cfg)
	require.NoError(t, err)
	_, ok := p.(*AnthropicProvider)
	assert.True(t, ok)
}

func TestNewEmbeddingProvider_FallsBackToStubWithoutAPIKey(t *testing.T) {
	cfg := &config.Config{EmbeddingProvider: config.ProviderGemini}
	p, err := NewEmbeddingProvider(context.Background(), cfg)
	require.NoError(t, err)
	_, ok := p.(*StubProvider)
	assert.True(t, ok)
}
