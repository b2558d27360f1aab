package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Completion CompletionConfig `toml:"completion"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Layout     LayoutConfig     `toml:"layout"`
	Index      IndexConfig      `toml:"index"`
	Artifacts  ArtifactsConfig  `toml:"artifacts"`
	Retry      RetryConfig      `toml:"retry"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	Limits     LimitsConfig     `toml:"limits"`
	Domain     DomainConfig     `toml:"domain"`
	Observer   ObserverConfig   `toml:"observer"`
	Log        LogConfig        `toml:"log"`
}

// CompletionConfig selects the text completion backend: "openai", "gemini" or "none".
type CompletionConfig struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Temperature float64 `toml:"temperature"`
}

// EmbeddingConfig selects the embedding backend: "openai", "gemini",
// "hashing" or "none". With LocalFallback set, failures of a remote backend
// fall back to local hashing vectors.
type EmbeddingConfig struct {
	Provider      string `toml:"provider"`
	Model         string `toml:"model"`
	APIKey        string `toml:"api_key"`
	BaseURL       string `toml:"base_url"`
	Dimensions    int    `toml:"dimensions"`
	LocalFallback bool   `toml:"local_fallback"`
}

// LayoutConfig selects the layout analyzer: "azure", "local" or "none".
type LayoutConfig struct {
	Provider     string   `toml:"provider"`
	Endpoint     string   `toml:"endpoint"`
	APIKey       string   `toml:"api_key"`
	Model        string   `toml:"model"`
	APIVersion   string   `toml:"api_version"`
	PollInterval Duration `toml:"poll_interval"`
}

// IndexConfig selects the similarity index: "memory", "sqlite" or "postgres".
type IndexConfig struct {
	Backend          string `toml:"backend"`
	Path             string `toml:"path"`
	DSN              string `toml:"dsn"`
	TextSearchConfig string `toml:"text_search_config"`
	TopK             int    `toml:"top_k"`
}

// ArtifactsConfig selects where Stream A results are kept: "fs" or "minio".
type ArtifactsConfig struct {
	Backend   string `toml:"backend"`
	Dir       string `toml:"dir"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

type RetryConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	BaseDelay      Duration `toml:"base_delay"`
	MaxDelay       Duration `toml:"max_delay"`
	Timeout        Duration `toml:"timeout"`
	AttemptTimeout Duration `toml:"attempt_timeout"`
}

// RateLimitConfig caps requests per minute per capability; 0 disables.
type RateLimitConfig struct {
	CompletionRPM int `toml:"completion_rpm"`
	EmbeddingRPM  int `toml:"embedding_rpm"`
	LayoutRPM     int `toml:"layout_rpm"`
	Burst         int `toml:"burst"`
}

type LimitsConfig struct {
	MaxSteps    int `toml:"max_steps"`
	MaxRows     int `toml:"max_rows"`
	MaxColumns  int `toml:"max_columns"`
	Concurrency int `toml:"concurrency"`
}

// DomainConfig names an optional domain profile ("tax", "legal",
// "healthcare") that extends classifier keywords and Stream B rules.
type DomainConfig struct {
	Profile string `toml:"profile"`
}

type ObserverConfig struct {
	Enabled     bool                       `toml:"enabled"`
	ServiceName string                     `toml:"service_name"`
	Pricing     map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// LogConfig sets the root logger. Format is "text" or "json".
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration read from a TOML string such as "1.5s".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Completion: CompletionConfig{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.1},
		Embedding:  EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536, LocalFallback: true},
		Layout:     LayoutConfig{Provider: "local", APIVersion: "2023-07-31", PollInterval: Duration{time.Second}},
		Index:      IndexConfig{Backend: "sqlite", Path: "docmind.db", TextSearchConfig: "english", TopK: 3},
		Artifacts:  ArtifactsConfig{Backend: "fs", Dir: "results", Bucket: "docmind", Prefix: "results"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration{4 * time.Second},
			MaxDelay:    Duration{10 * time.Second},
		},
		RateLimit: RateLimitConfig{Burst: 1},
		Limits:    LimitsConfig{MaxSteps: 64, MaxRows: 1_000_000, MaxColumns: 1024, Concurrency: 4},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins). A missing
// file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = "docmind.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(&cfg)

	// Fallbacks
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == cfg.Completion.Provider {
		cfg.Embedding.APIKey = cfg.Completion.APIKey
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = v
		}
	}

	str(&cfg.Completion.Provider, "DOCMIND_COMPLETION_PROVIDER")
	str(&cfg.Completion.Model, "DOCMIND_COMPLETION_MODEL")
	str(&cfg.Completion.APIKey, "DOCMIND_COMPLETION_API_KEY", "OPENAI_API_KEY")
	str(&cfg.Completion.BaseURL, "DOCMIND_COMPLETION_BASE_URL")

	str(&cfg.Embedding.Provider, "DOCMIND_EMBEDDING_PROVIDER")
	str(&cfg.Embedding.Model, "DOCMIND_EMBEDDING_MODEL")
	str(&cfg.Embedding.APIKey, "DOCMIND_EMBEDDING_API_KEY")
	num(&cfg.Embedding.Dimensions, "DOCMIND_EMBEDDING_DIMENSIONS")

	str(&cfg.Layout.Provider, "DOCMIND_LAYOUT_PROVIDER")
	str(&cfg.Layout.Endpoint, "DOCMIND_LAYOUT_ENDPOINT", "AZURE_FORM_RECOGNIZER_ENDPOINT")
	str(&cfg.Layout.APIKey, "DOCMIND_LAYOUT_API_KEY", "AZURE_FORM_RECOGNIZER_KEY")

	str(&cfg.Index.Backend, "DOCMIND_INDEX_BACKEND")
	str(&cfg.Index.Path, "DOCMIND_INDEX_PATH")
	str(&cfg.Index.DSN, "DOCMIND_INDEX_DSN")

	str(&cfg.Artifacts.Backend, "DOCMIND_ARTIFACTS_BACKEND")
	str(&cfg.Artifacts.Dir, "DOCMIND_ARTIFACTS_DIR")
	str(&cfg.Artifacts.Endpoint, "DOCMIND_ARTIFACTS_ENDPOINT")
	str(&cfg.Artifacts.AccessKey, "DOCMIND_ARTIFACTS_ACCESS_KEY")
	str(&cfg.Artifacts.SecretKey, "DOCMIND_ARTIFACTS_SECRET_KEY")
	str(&cfg.Artifacts.Bucket, "DOCMIND_ARTIFACTS_BUCKET")

	str(&cfg.Domain.Profile, "DOCMIND_DOMAIN_PROFILE")
	num(&cfg.Limits.Concurrency, "DOCMIND_CONCURRENCY")

	str(&cfg.Log.Level, "DOCMIND_LOG_LEVEL")
	str(&cfg.Log.Format, "DOCMIND_LOG_FORMAT")

	switch strings.ToLower(os.Getenv("DOCMIND_OBSERVER_ENABLED")) {
	case "true", "1":
		cfg.Observer.Enabled = true
	case "false", "0":
		cfg.Observer.Enabled = false
	}
}
