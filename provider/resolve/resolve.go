// Package resolve builds completion and embedding providers from a
// provider name, so callers can switch backends through configuration.
package resolve

import (
	"fmt"
	"log/slog"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/provider/gemini"
	"github.com/nevindra/docmind/provider/offline"
	"github.com/nevindra/docmind/provider/openai"
)

// Config holds provider-agnostic configuration for creating a completion Provider.
type Config struct {
	Provider string // "gemini", "openai", "groq", "deepseek", "together", "mistral", "ollama", "none"
	APIKey   string
	Model    string
	BaseURL  string // optional; auto-filled for known OpenAI-compatible vendors

	// nil = provider default
	Temperature *float64
	TopP        *float64

	Logger *slog.Logger
}

// EmbeddingConfig holds provider-agnostic configuration for creating an EmbeddingProvider.
type EmbeddingConfig struct {
	Provider   string // "gemini", "openai", "together", "mistral", "ollama", "hashing", "none"
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int

	Logger *slog.Logger
}

// Provider creates a docmind.Provider from cfg. "none" (or empty) yields a
// provider that always reports docmind.ErrServiceUnavailable.
func Provider(cfg Config) (docmind.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		var opts []gemini.Option
		if cfg.Temperature != nil {
			opts = append(opts, gemini.WithTemperature(*cfg.Temperature))
		}
		if cfg.TopP != nil {
			opts = append(opts, gemini.WithTopP(*cfg.TopP))
		}
		return gemini.New(cfg.APIKey, cfg.Model, opts...), nil
	case "openai", "groq", "deepseek", "together", "mistral", "ollama":
		opts := []openai.Option{openai.WithBaseURL(baseURL(cfg.Provider, cfg.APIKey, cfg.BaseURL))}
		if cfg.Temperature != nil {
			opts = append(opts, openai.WithTemperature(float32(*cfg.Temperature)))
		}
		if cfg.Logger != nil {
			opts = append(opts, openai.WithLogger(cfg.Logger))
		}
		return openai.New(cfg.APIKey, cfg.Model, opts...), nil
	case "none", "":
		return offline.Unconfigured{}, nil
	default:
		return nil, fmt.Errorf("resolve: unknown completion provider %q", cfg.Provider)
	}
}

// EmbeddingProvider creates a docmind.EmbeddingProvider from cfg.
func EmbeddingProvider(cfg EmbeddingConfig) (docmind.EmbeddingProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewEmbedding(cfg.APIKey, cfg.Model, cfg.Dimensions), nil
	case "openai", "together", "mistral", "ollama":
		opts := []openai.Option{openai.WithBaseURL(baseURL(cfg.Provider, cfg.APIKey, cfg.BaseURL))}
		if cfg.Logger != nil {
			opts = append(opts, openai.WithLogger(cfg.Logger))
		}
		return openai.NewEmbedding(cfg.APIKey, cfg.Model, cfg.Dimensions, opts...), nil
	case "hashing":
		return offline.NewHashing(cfg.Dimensions), nil
	case "none", "":
		return offline.UnconfiguredEmbedding{}, nil
	default:
		return nil, fmt.Errorf("resolve: unknown embedding provider %q", cfg.Provider)
	}
}

// Configured reports whether a provider built from these settings can make
// calls: a key is present, or the endpoint needs none.
func Configured(provider, apiKey, explicitBaseURL string) bool {
	switch provider {
	case "none", "":
		return false
	case "ollama", "hashing":
		return true
	}
	return apiKey != "" || explicitBaseURL != ""
}

// baseURL returns the endpoint for an OpenAI-compatible vendor. Without a
// key, hosted vendors get no default so the client stays unconfigured.
func baseURL(provider, apiKey, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if apiKey == "" && provider != "ollama" {
		return ""
	}
	return defaultBaseURL(provider)
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "deepseek":
		return "https://api.deepseek.com/v1"
	case "together":
		return "https://api.together.xyz/v1"
	case "mistral":
		return "https://api.mistral.ai/v1"
	case "ollama":
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}
