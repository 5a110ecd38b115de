package provider

import (
	"context"

	"github.com/breeze4/indiseek/internal/config"
)

// NewChatProvider builds the ChatProvider for cfg.LLMProvider, falling
// back to StubProvider when that provider's API key is unset — mirrors
// reposearch's NewClient factory, generalized to indiseek's three chat
// backends.
func NewChatProvider(ctx context.Context, cfg *config.Config) (ChatProvider, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return NewStubProvider(0), nil
		}
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, "", 0), nil
	case config.ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return NewStubProvider(0), nil
		}
		return NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model), nil
	case config.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return NewStubProvider(0), nil
		}
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, "", "", cfg.Gemini.Model, cfg.Gemini.EmbeddingModel, cfg.Gemini.EmbeddingDims)
	default:
		return NewStubProvider(0), nil
	}
}

// NewEmbeddingProvider builds the EmbeddingProvider for
// cfg.EmbeddingProvider. Anthropic never appears here: config.Load
// rejects it as an EMBEDDING_PROVIDER value, since Anthropic has no
// embeddings endpoint.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config) (EmbeddingProvider, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return NewStubProvider(0), nil
		}
		return NewOpenAIProvider(cfg.OpenAI.APIKey, "", cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDims), nil
	case config.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return NewStubProvider(0), nil
		}
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, "", "", cfg.Gemini.Model, cfg.Gemini.EmbeddingModel, cfg.Gemini.EmbeddingDims)
	default:
		return NewStubProvider(0), nil
	}
}
