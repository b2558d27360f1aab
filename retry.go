package docmind

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryConfig is shared by every retry wrapper so completion, embedding and
// layout calls follow the same attempts and backoff curve.
type retryConfig struct {
	maxAttempts    int
	baseDelay      time.Duration
	maxDelay       time.Duration
	timeout        time.Duration // overall budget across attempts; 0 = no limit
	attemptTimeout time.Duration // per attempt; 0 = no limit
	logger         *slog.Logger
}

// RetryOption configures a retry wrapper.
type RetryOption func(*retryConfig)

// RetryMaxAttempts sets the maximum number of attempts (default: 3).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryConfig) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt (default: 1s).
// Each subsequent delay doubles, with jitter, up to the max delay.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryConfig) { r.baseDelay = d }
}

// RetryMaxDelay caps a single backoff delay (default: 10s).
func RetryMaxDelay(d time.Duration) RetryOption {
	return func(r *retryConfig) { r.maxDelay = d }
}

// RetryTimeout sets the overall timeout for the entire retry sequence.
// The zero value (default) disables the timeout.
func RetryTimeout(d time.Duration) RetryOption {
	return func(r *retryConfig) { r.timeout = d }
}

// RetryAttemptTimeout bounds each individual attempt. An attempt that runs
// past it is cancelled and counts as a transient failure.
func RetryAttemptTimeout(d time.Duration) RetryOption {
	return func(r *retryConfig) { r.attemptTimeout = d }
}

// RetryLogger sets the structured logger for retry events. Retries log at
// WARN and exhausted sequences at ERROR.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryConfig) { r.logger = l }
}

func newRetryConfig(opts []RetryOption) retryConfig {
	cfg := retryConfig{
		maxAttempts: 3,
		baseDelay:   time.Second,
		maxDelay:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAttempts < 1 {
		cfg.maxAttempts = 1
	}
	if cfg.logger == nil {
		cfg.logger = nopLogger
	}
	return cfg
}

// retryAfterBackOff raises the next delay to the server's Retry-After hint
// when the last failure carried one.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if b.hint > d {
		d = b.hint
	}
	b.hint = 0
	return d
}

// retryCall runs fn under the shared policy. Transient failures are retried;
// everything else is returned immediately.
func retryCall[T any](ctx context.Context, cfg retryConfig, capability, name string, fn func(context.Context) (T, error)) (T, error) {
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.baseDelay
	exp.MaxInterval = cfg.maxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.5
	b := &retryAfterBackOff{BackOff: exp}

	attempt := 0
	op := func() (T, error) {
		attempt++
		actx := ctx
		if cfg.attemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, cfg.attemptTimeout)
			defer cancel()
		}
		result, err := fn(actx)
		if err == nil {
			return result, nil
		}
		if !isTransient(ctx, err) {
			return result, backoff.Permanent(err)
		}
		b.hint = retryAfterOf(err)
		return result, err
	}

	notify := func(err error, next time.Duration) {
		cfg.logger.Warn("retrying transient error",
			"capability", capability,
			"provider", name,
			"status", statusOf(err),
			"attempt", attempt,
			"max_attempts", cfg.maxAttempts,
			"next_delay", next)
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(cfg.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil && attempt >= cfg.maxAttempts && isTransient(ctx, err) {
		cfg.logger.Error("all retry attempts exhausted",
			"capability", capability,
			"provider", name,
			"attempts", attempt,
			"error", err)
	}
	return result, err
}

// isTransient reports whether err is worth retrying: throttling, server-side
// unavailability, or an attempt that timed out while the caller still waits.
func isTransient(ctx context.Context, err error) bool {
	var p *PermanentError
	if errors.As(err, &p) || errors.Is(err, ErrServiceUnavailable) {
		return false
	}
	var h *ErrHTTP
	if errors.As(err, &h) {
		switch h.Status {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryAfterOf extracts the Retry-After duration from an ErrHTTP, or 0.
func retryAfterOf(err error) time.Duration {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// --- Completion ---

type retryProvider struct {
	inner Provider
	cfg   retryConfig
}

// WithRetry wraps p with automatic retry on transient errors (429, 5xx,
// attempt timeouts). Retries use exponential backoff with jitter, floored by
// the server's Retry-After value:
//
//	llm = docmind.WithRetry(openai.New(apiKey, model))
//	llm = docmind.WithRetry(openai.New(apiKey, model), docmind.RetryMaxAttempts(5))
func WithRetry(p Provider, opts ...RetryOption) Provider {
	return &retryProvider{inner: p, cfg: newRetryConfig(opts)}
}

func (r *retryProvider) Name() string { return r.inner.Name() }

func (r *retryProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return retryCall(ctx, r.cfg, "completion", r.inner.Name(), func(ctx context.Context) (ChatResponse, error) {
		return r.inner.Chat(ctx, req)
	})
}

// --- Embedding ---

type retryEmbeddingProvider struct {
	inner EmbeddingProvider
	cfg   retryConfig
}

// WithEmbeddingRetry wraps p with the same retry policy as WithRetry.
func WithEmbeddingRetry(p EmbeddingProvider, opts ...RetryOption) EmbeddingProvider {
	return &retryEmbeddingProvider{inner: p, cfg: newRetryConfig(opts)}
}

func (r *retryEmbeddingProvider) Name() string    { return r.inner.Name() }
func (r *retryEmbeddingProvider) Dimensions() int { return r.inner.Dimensions() }

func (r *retryEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return retryCall(ctx, r.cfg, "embedding", r.inner.Name(), func(ctx context.Context) ([][]float32, error) {
		return r.inner.Embed(ctx, texts)
	})
}

// --- Layout ---

type retryLayoutAnalyzer struct {
	inner LayoutAnalyzer
	cfg   retryConfig
}

// WithLayoutRetry wraps a with the same retry policy as WithRetry.
// ErrServiceUnavailable is never retried.
func WithLayoutRetry(a LayoutAnalyzer, opts ...RetryOption) LayoutAnalyzer {
	return &retryLayoutAnalyzer{inner: a, cfg: newRetryConfig(opts)}
}

func (r *retryLayoutAnalyzer) Name() string { return r.inner.Name() }

func (r *retryLayoutAnalyzer) Analyze(ctx context.Context, content []byte) (Layout, error) {
	return retryCall(ctx, r.cfg, "layout", r.inner.Name(), func(ctx context.Context) (Layout, error) {
		return r.inner.Analyze(ctx, content)
	})
}

// compile-time checks
var (
	_ Provider          = (*retryProvider)(nil)
	_ EmbeddingProvider = (*retryEmbeddingProvider)(nil)
	_ LayoutAnalyzer    = (*retryLayoutAnalyzer)(nil)
)
