// Package app builds the capability clients, index and artifact store from
// configuration and wires them into a dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/artifact/fs"
	"github.com/nevindra/docmind/artifact/minio"
	"github.com/nevindra/docmind/classify"
	"github.com/nevindra/docmind/dispatch"
	"github.com/nevindra/docmind/index"
	"github.com/nevindra/docmind/index/postgres"
	"github.com/nevindra/docmind/index/sqlite"
	"github.com/nevindra/docmind/internal/config"
	"github.com/nevindra/docmind/observer"
	"github.com/nevindra/docmind/provider/layout"
	"github.com/nevindra/docmind/provider/layout/azure"
	"github.com/nevindra/docmind/provider/layout/local"
	"github.com/nevindra/docmind/provider/offline"
	"github.com/nevindra/docmind/provider/resolve"
	"github.com/nevindra/docmind/stream/extract"
	"github.com/nevindra/docmind/tabops"
)

// App owns every long-lived resource of a docmind process.
type App struct {
	Dispatcher *dispatch.Dispatcher
	Artifacts  docmind.ArtifactStore
	Index      docmind.SimilarityIndex

	cfg     config.Config
	logger  *slog.Logger
	health  Health
	closers []func(context.Context) error
}

// New builds an App. Capabilities without credentials are still wired; their
// calls fail with docmind.ErrServiceUnavailable and the streams take their
// degraded paths.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = docmind.NopLogger()
	}
	a := &App{cfg: cfg, logger: logger, health: Health{Status: "healthy", Services: map[string]Service{}}}

	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx, cfg.Observer.ServiceName, pricing)
		if err != nil {
			return nil, fmt.Errorf("observer init: %w", err)
		}
		a.closers = append(a.closers, shutdown)
	}

	completion, err := a.completion()
	if err != nil {
		a.Close(ctx) //nolint:errcheck
		return nil, err
	}
	embedding, err := a.embedding()
	if err != nil {
		a.Close(ctx) //nolint:errcheck
		return nil, err
	}
	analyzer, err := a.layout()
	if err != nil {
		a.Close(ctx) //nolint:errcheck
		return nil, err
	}
	if inst != nil {
		completion = observer.WrapProvider(completion, cfg.Completion.Model, inst)
		embedding = observer.WrapEmbedding(embedding, cfg.Embedding.Model, inst)
		analyzer = observer.WrapLayout(analyzer, inst)
	}

	idx, err := a.index(ctx)
	if err != nil {
		a.Close(ctx) //nolint:errcheck
		return nil, err
	}
	a.Index = idx

	store, err := a.artifacts(ctx)
	if err != nil {
		a.Close(ctx) //nolint:errcheck
		return nil, err
	}
	a.Artifacts = store

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithTopK(cfg.Index.TopK),
		dispatch.WithLimits(tabops.Limits{
			MaxSteps:   cfg.Limits.MaxSteps,
			MaxRows:    cfg.Limits.MaxRows,
			MaxColumns: cfg.Limits.MaxColumns,
		}),
	}
	if inst != nil {
		opts = append(opts, dispatch.WithInstruments(inst))
	}
	if name := cfg.Domain.Profile; name != "" {
		profile, err := classify.LookupProfile(name)
		if err != nil {
			a.Close(ctx) //nolint:errcheck
			return nil, err
		}
		rules, err := extract.RulesFor(name)
		if err != nil {
			a.Close(ctx) //nolint:errcheck
			return nil, err
		}
		opts = append(opts,
			dispatch.WithClassifier(classify.New(classify.WithProfile(profile))),
			dispatch.WithRules(rules...),
		)
		a.health.Profile = profile.Name
	}

	a.Dispatcher = dispatch.New(dispatch.Deps{
		Completion: completion,
		Embedding:  embedding,
		Layout:     analyzer,
		Index:      idx,
		Artifacts:  store,
	}, opts...)
	logger.Debug("app: ready", "services", a.health.Services)
	return a, nil
}

func (a *App) retryOpts() []docmind.RetryOption {
	r := a.cfg.Retry
	opts := []docmind.RetryOption{docmind.RetryLogger(a.logger)}
	if r.MaxAttempts > 0 {
		opts = append(opts, docmind.RetryMaxAttempts(r.MaxAttempts))
	}
	if r.BaseDelay.Duration > 0 {
		opts = append(opts, docmind.RetryBaseDelay(r.BaseDelay.Duration))
	}
	if r.MaxDelay.Duration > 0 {
		opts = append(opts, docmind.RetryMaxDelay(r.MaxDelay.Duration))
	}
	if r.Timeout.Duration > 0 {
		opts = append(opts, docmind.RetryTimeout(r.Timeout.Duration))
	}
	if r.AttemptTimeout.Duration > 0 {
		opts = append(opts, docmind.RetryAttemptTimeout(r.AttemptTimeout.Duration))
	}
	return opts
}

func (a *App) rateOpts(rpm int) []docmind.RateLimitOption {
	return []docmind.RateLimitOption{docmind.RPM(rpm), docmind.Burst(a.cfg.RateLimit.Burst)}
}

func (a *App) completion() (docmind.Provider, error) {
	c := a.cfg.Completion
	temp := c.Temperature
	p, err := resolve.Provider(resolve.Config{
		Provider:    c.Provider,
		APIKey:      c.APIKey,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		Temperature: &temp,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a.health.set("completion", backendName(c.Provider), resolve.Configured(c.Provider, c.APIKey, c.BaseURL))

	p = docmind.WithRetry(p, a.retryOpts()...)
	if rpm := a.cfg.RateLimit.CompletionRPM; rpm > 0 {
		p = docmind.WithRateLimit(p, a.rateOpts(rpm)...)
	}
	return p, nil
}

func (a *App) embedding() (docmind.EmbeddingProvider, error) {
	e := a.cfg.Embedding
	p, err := resolve.EmbeddingProvider(resolve.EmbeddingConfig{
		Provider:   e.Provider,
		APIKey:     e.APIKey,
		Model:      e.Model,
		BaseURL:    e.BaseURL,
		Dimensions: e.Dimensions,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if e.Provider == "hashing" {
		a.health.setLocal("embedding", "hashing")
		return p, nil
	}
	a.health.set("embedding", backendName(e.Provider), resolve.Configured(e.Provider, e.APIKey, e.BaseURL))

	p = docmind.WithEmbeddingRetry(p, a.retryOpts()...)
	if rpm := a.cfg.RateLimit.EmbeddingRPM; rpm > 0 {
		p = docmind.WithEmbeddingRateLimit(p, a.rateOpts(rpm)...)
	}
	if e.LocalFallback {
		p = docmind.NewFallbackEmbedding(a.logger, p, offline.NewHashing(e.Dimensions))
	}
	return p, nil
}

func backendName(provider string) string {
	if provider == "" {
		return "none"
	}
	return provider
}

func (a *App) layout() (docmind.LayoutAnalyzer, error) {
	l := a.cfg.Layout
	var an docmind.LayoutAnalyzer
	switch l.Provider {
	case "azure":
		opts := []azure.Option{azure.WithLogger(a.logger)}
		if l.Model != "" {
			opts = append(opts, azure.WithModel(l.Model))
		}
		if l.APIVersion != "" {
			opts = append(opts, azure.WithAPIVersion(l.APIVersion))
		}
		if l.PollInterval.Duration > 0 {
			opts = append(opts, azure.WithPollInterval(l.PollInterval.Duration))
		}
		an = azure.New(l.Endpoint, l.APIKey, opts...)
		a.health.set("layout", l.Provider, l.Endpoint != "" && l.APIKey != "")
	case "local":
		a.health.setLocal("layout", "local")
		return local.New(local.WithLogger(a.logger)), nil
	case "none", "":
		a.health.set("layout", "none", false)
		return layout.Unconfigured{}, nil
	default:
		return nil, fmt.Errorf("config: unknown layout provider %q", l.Provider)
	}
	an = docmind.WithLayoutRetry(an, a.retryOpts()...)
	if rpm := a.cfg.RateLimit.LayoutRPM; rpm > 0 {
		an = docmind.WithLayoutRateLimit(an, a.rateOpts(rpm)...)
	}
	return an, nil
}

func (a *App) index(ctx context.Context) (docmind.SimilarityIndex, error) {
	c := a.cfg.Index
	var idx docmind.SimilarityIndex
	switch c.Backend {
	case "memory":
		idx = index.NewMemory()
	case "sqlite":
		idx = sqlite.New(c.Path, sqlite.WithLogger(a.logger))
	case "postgres":
		pool, err := postgres.Connect(ctx, c.DSN)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		opts := []postgres.Option{postgres.WithLogger(a.logger), postgres.WithEmbeddingDimension(a.cfg.Embedding.Dimensions)}
		if c.TextSearchConfig != "" {
			opts = append(opts, postgres.WithTextSearchConfig(c.TextSearchConfig))
		}
		idx = postgres.New(pool, opts...)
	default:
		return nil, fmt.Errorf("config: unknown index backend %q", c.Backend)
	}
	if err := idx.Init(ctx); err != nil {
		idx.Close() //nolint:errcheck
		return nil, fmt.Errorf("index init: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return idx.Close() })
	a.health.setLocal("index", c.Backend)
	return idx, nil
}

func (a *App) artifacts(ctx context.Context) (docmind.ArtifactStore, error) {
	c := a.cfg.Artifacts
	switch c.Backend {
	case "fs":
		a.health.setLocal("artifacts", "fs")
		return fs.New(c.Dir, fs.WithLogger(a.logger)), nil
	case "minio":
		s, err := minio.New(ctx, minio.Config{
			Endpoint:  c.Endpoint,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Bucket:    c.Bucket,
			Prefix:    c.Prefix,
			UseSSL:    c.UseSSL,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("artifacts: %w", err)
		}
		a.health.set("artifacts", "minio", true)
		return s, nil
	}
	return nil, fmt.Errorf("config: unknown artifacts backend %q", c.Backend)
}

// Concurrency is the configured number of documents processed in parallel.
func (a *App) Concurrency() int { return a.cfg.Limits.Concurrency }

// Health reports which capabilities are configured.
func (a *App) Health() Health { return a.health }

// Close releases every resource in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range slices.Backward(a.closers) {
		errs = append(errs, c(ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
