package docmind

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitOption configures a token bucket placed in front of a capability.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	rpm   int
	burst int
}

// RPM sets the maximum requests per minute.
func RPM(n int) RateLimitOption {
	return func(c *rateLimitConfig) { c.rpm = n }
}

// Burst sets how many requests may pass back to back before the per-minute
// pacing applies (default 1).
func Burst(n int) RateLimitOption {
	return func(c *rateLimitConfig) { c.burst = n }
}

func newLimiter(opts []RateLimitOption) *rate.Limiter {
	cfg := rateLimitConfig{burst: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if cfg.burst < 1 {
		cfg.burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.rpm)), cfg.burst)
}

type rateLimitProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p with proactive rate limiting. Requests block until
// the bucket allows them or ctx is done. Compose with other wrappers:
//
//	llm = docmind.WithRateLimit(docmind.WithRetry(provider), docmind.RPM(60))
func WithRateLimit(p Provider, opts ...RateLimitOption) Provider {
	return &rateLimitProvider{inner: p, limiter: newLimiter(opts)}
}

func (r *rateLimitProvider) Name() string { return r.inner.Name() }

func (r *rateLimitProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ChatResponse{}, err
	}
	return r.inner.Chat(ctx, req)
}

type rateLimitEmbedding struct {
	inner   EmbeddingProvider
	limiter *rate.Limiter
}

// WithEmbeddingRateLimit is WithRateLimit for embedding providers.
func WithEmbeddingRateLimit(p EmbeddingProvider, opts ...RateLimitOption) EmbeddingProvider {
	return &rateLimitEmbedding{inner: p, limiter: newLimiter(opts)}
}

func (r *rateLimitEmbedding) Name() string    { return r.inner.Name() }
func (r *rateLimitEmbedding) Dimensions() int { return r.inner.Dimensions() }

func (r *rateLimitEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

type rateLimitLayout struct {
	inner   LayoutAnalyzer
	limiter *rate.Limiter
}

// WithLayoutRateLimit is WithRateLimit for layout analyzers.
func WithLayoutRateLimit(a LayoutAnalyzer, opts ...RateLimitOption) LayoutAnalyzer {
	return &rateLimitLayout{inner: a, limiter: newLimiter(opts)}
}

func (r *rateLimitLayout) Name() string { return r.inner.Name() }

func (r *rateLimitLayout) Analyze(ctx context.Context, content []byte) (Layout, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Layout{}, err
	}
	return r.inner.Analyze(ctx, content)
}

var (
	_ Provider          = (*rateLimitProvider)(nil)
	_ EmbeddingProvider = (*rateLimitEmbedding)(nil)
	_ LayoutAnalyzer    = (*rateLimitLayout)(nil)
)
