// Package config loads indiseek's process configuration entirely from
// environment variables, matching spec.md §6: no flag parsing, no .env
// file loading. The shape mirrors the teacher's internal/config layering
// (sub-configs grouped by concern) but the source is env vars only, in the
// style of github.com/kelseyhightower/envconfig.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider enumerates the supported chat/embedding backends.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// PathsConfig groups on-disk location settings.
type PathsConfig struct {
	RepoPath string // legacy single-repo path, enables the id=1 auto-migration
	DataDir  string
	ReposDir string
}

// ProviderConfig groups one provider's credential and model selection.
type ProviderConfig struct {
	APIKey          string
	Model           string
	EmbeddingModel  string
	EmbeddingDims   int
}

// GenerationConfig groups Gemini-specific generation tuning knobs. Empty
// string fields mean "use the provider's API default".
type GenerationConfig struct {
	Temperature      string
	ThinkingLevel    string
	MaxOutputTokens  string
	ThinkingResearch string
}

// ServerConfig groups HTTP bind settings.
type ServerConfig struct {
	Host string
	Port int
}

// Config is the fully loaded process configuration.
type Config struct {
	Paths             PathsConfig
	Server            ServerConfig
	LLMProvider       Provider
	EmbeddingProvider Provider
	Gemini            ProviderConfig
	OpenAI            ProviderConfig
	Anthropic         ProviderConfig
	Generation        GenerationConfig
	PriceTablePath    string
	LogLevel          string
	LogFilePath       string
}

// Load reads and validates configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		Paths: PathsConfig{
			RepoPath: os.Getenv("REPO_PATH"),
			DataDir:  getDefault("DATA_DIR", "./data"),
		},
		Server: ServerConfig{
			Host: getDefault("HOST", "0.0.0.0"),
		},
		LLMProvider:       Provider(strings.ToLower(getDefault("LLM_PROVIDER", "gemini"))),
		EmbeddingProvider: Provider(strings.ToLower(getDefault("EMBEDDING_PROVIDER", "gemini"))),
		Gemini: ProviderConfig{
			APIKey:         os.Getenv("GEMINI_API_KEY"),
			Model:          os.Getenv("GEMINI_MODEL"),
			EmbeddingModel: os.Getenv("GEMINI_EMBEDDING_MODEL"),
		},
		OpenAI: ProviderConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			Model:          os.Getenv("OPENAI_MODEL"),
			EmbeddingModel: os.Getenv("OPENAI_EMBEDDING_MODEL"),
		},
		Anthropic: ProviderConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  os.Getenv("ANTHROPIC_MODEL"),
		},
		Generation: GenerationConfig{
			Temperature:      os.Getenv("GEMINI_TEMPERATURE"),
			ThinkingLevel:    os.Getenv("GEMINI_THINKING_LEVEL"),
			MaxOutputTokens:  os.Getenv("GEMINI_MAX_OUTPUT_TOKENS"),
			ThinkingResearch: os.Getenv("GEMINI_THINKING_RESEARCH"),
		},
		PriceTablePath: os.Getenv("PRICE_TABLE_PATH"),
		LogLevel:       getDefault("LOG_LEVEL", "info"),
		LogFilePath:    os.Getenv("LOG_FILE_PATH"),
	}
	cfg.Paths.ReposDir = getDefault("REPOS_DIR", cfg.Paths.DataDir+"/repos")

	port, err := strconv.Atoi(getDefault("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid PORT: %w", err)
	}
	cfg.Server.Port = port

	if dims := os.Getenv("GEMINI_EMBEDDING_DIMS"); dims != "" {
		n, err := strconv.Atoi(dims)
		if err != nil {
			return nil, fmt.Errorf("config: invalid GEMINI_EMBEDDING_DIMS: %w", err)
		}
		cfg.Gemini.EmbeddingDims = n
	}
	if dims := os.Getenv("OPENAI_EMBEDDING_DIMS"); dims != "" {
		n, err := strconv.Atoi(dims)
		if err != nil {
			return nil, fmt.Errorf("config: invalid OPENAI_EMBEDDING_DIMS: %w", err)
		}
		cfg.OpenAI.EmbeddingDims = n
	}

	switch cfg.LLMProvider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return nil, fmt.Errorf("config: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	switch cfg.EmbeddingProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("config: unknown EMBEDDING_PROVIDER %q", cfg.EmbeddingProvider)
	}

	return cfg, nil
}

// ActiveChatKey returns the API key for the configured LLM_PROVIDER, or
// empty if unset (callers fall back to the stub provider in that case).
func (c *Config) ActiveChatKey() string {
	switch c.LLMProvider {
	case ProviderGemini:
		return c.Gemini.APIKey
	case ProviderOpenAI:
		return c.OpenAI.APIKey
	case ProviderAnthropic:
		return c.Anthropic.APIKey
	default:
		return ""
	}
}

// ActiveEmbeddingKey returns the API key for the configured
// EMBEDDING_PROVIDER, or empty if unset.
func (c *Config) ActiveEmbeddingKey() string {
	switch c.EmbeddingProvider {
	case ProviderGemini:
		return c.Gemini.APIKey
	case ProviderOpenAI:
		return c.OpenAI.APIKey
	default:
		return ""
	}
}

// ActiveChatModel returns the model name configured for LLM_PROVIDER, or
// a sensible per-provider default when unset.
func (c *Config) ActiveChatModel() string {
	withDefault := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	switch c.LLMProvider {
	case ProviderGemini:
		return withDefault(c.Gemini.Model, "gemini-2.0-flash")
	case ProviderOpenAI:
		return withDefault(c.OpenAI.Model, "gpt-4o-mini")
	case ProviderAnthropic:
		return withDefault(c.Anthropic.Model, "claude-3-5-haiku-latest")
	default:
		return ""
	}
}

func getDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
