package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/dispatch"
	"github.com/nevindra/docmind/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Completion.Provider = "none"
	cfg.Embedding.Provider = "hashing"
	cfg.Embedding.Dimensions = 64
	cfg.Layout.Provider = "none"
	cfg.Index.Backend = "memory"
	cfg.Artifacts.Dir = filepath.Join(t.TempDir(), "results")
	return cfg
}

func TestNew_Offline(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, offlineConfig(t), nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	h := a.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, Service{Backend: "none", State: StateMissingKey}, h.Services["completion"])
	assert.Equal(t, Service{Backend: "hashing", State: StateLocal}, h.Services["embedding"])
	assert.Equal(t, Service{Backend: "none", State: StateMissingKey}, h.Services["layout"])
	assert.Equal(t, Service{Backend: "memory", State: StateLocal}, h.Services["index"])
	assert.Equal(t, Service{Backend: "fs", State: StateLocal}, h.Services["artifacts"])
	assert.Equal(t, 4, a.Concurrency())
}

func TestNew_DegradedStreams(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, offlineConfig(t), nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	res := a.Dispatcher.Process(ctx, dispatch.Request{Document: docmind.Document{
		Filename: "tax_form.pdf",
		Content:  []byte("Form 1040"),
	}})
	assert.Equal(t, docmind.StreamB, res.Stream)
	assert.Equal(t, docmind.StatusSimulated, res.Status)

	res = a.Dispatcher.Process(ctx, dispatch.Request{Document: docmind.Document{
		Filename: "data.csv",
		Content:  []byte("a,b\n1,2\n"),
	}})
	assert.Equal(t, docmind.StreamA, res.Stream)
	assert.Equal(t, docmind.StatusError, res.Status)
	assert.Contains(t, res.Message, "Program generation failed")
}

func TestNew_Profile(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig(t)
	cfg.Domain.Profile = "legal"

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Equal(t, "legal", a.Health().Profile)
	doc := docmind.Document{Filename: "contract.pdf", Content: []byte("This Agreement is made")}
	assert.Equal(t, docmind.StreamD, a.Dispatcher.Classify(doc))
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"completion", func(c *config.Config) { c.Completion.Provider = "llama" }, "unknown completion provider"},
		{"embedding", func(c *config.Config) { c.Embedding.Provider = "word2vec" }, "unknown embedding provider"},
		{"layout", func(c *config.Config) { c.Layout.Provider = "tesseract" }, "unknown layout provider"},
		{"index", func(c *config.Config) { c.Index.Backend = "redis" }, "unknown index backend"},
		{"artifacts", func(c *config.Config) { c.Artifacts.Backend = "s3" }, "unknown artifacts backend"},
		{"profile", func(c *config.Config) { c.Domain.Profile = "finance" }, "unknown domain profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := offlineConfig(t)
			tt.mutate(&cfg)
			_, err := New(ctx, cfg, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNew_RemoteProvidersWithoutKeys(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig(t)
	cfg.Completion.Provider = "openai"
	cfg.Embedding.Provider = "gemini"
	cfg.Layout.Provider = "azure"
	cfg.Layout.Endpoint = "https://example.cognitiveservices.azure.com"
	cfg.RateLimit.CompletionRPM = 60

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	h := a.Health()
	assert.Equal(t, StateMissingKey, h.Services["completion"].State)
	assert.Equal(t, StateMissingKey, h.Services["embedding"].State)
	assert.Equal(t, StateMissingKey, h.Services["layout"].State)
}

func TestNew_SQLiteIndex(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig(t)
	cfg.Index.Backend = "sqlite"
	cfg.Index.Path = filepath.Join(t.TempDir(), "index.db")

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	n, err := a.Index.Count(ctx, "none")
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, a.Close(ctx))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"service":"docmind"`)
}
