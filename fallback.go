package docmind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// FallbackEmbedding tries each embedding provider in order and returns the
// first successful result. Every provider must produce vectors of the same
// dimensionality; Dimensions reports the first provider's.
//
// A cancelled context stops the chain immediately.
type FallbackEmbedding struct {
	providers []EmbeddingProvider
	logger    *slog.Logger
}

// NewFallbackEmbedding chains providers. A nil logger discards output.
func NewFallbackEmbedding(logger *slog.Logger, providers ...EmbeddingProvider) *FallbackEmbedding {
	if logger == nil {
		logger = nopLogger
	}
	return &FallbackEmbedding{providers: providers, logger: logger}
}

// Name joins the chained provider names with "|".
func (f *FallbackEmbedding) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "|")
}

// Dimensions returns the first provider's dimensionality, or 0 for an empty chain.
func (f *FallbackEmbedding) Dimensions() int {
	if len(f.providers) == 0 {
		return 0
	}
	return f.providers[0].Dimensions()
}

// Embed returns the first provider's vectors that succeed. When all fail the
// errors are joined; the result wraps ErrServiceUnavailable only if every
// provider was unavailable.
func (f *FallbackEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, _, err := f.embed(ctx, texts)
	return vecs, err
}

// embed also reports the index of the provider that served the call.
func (f *FallbackEmbedding) embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	if len(f.providers) == 0 {
		return nil, -1, fmt.Errorf("embedding: empty fallback chain: %w", ErrServiceUnavailable)
	}
	var errs []error
	for i, p := range f.providers {
		vecs, err := p.Embed(ctx, texts)
		if err == nil {
			return vecs, i, nil
		}
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if i < len(f.providers)-1 {
			f.logger.Warn("embedding provider failed, falling back",
				"provider", p.Name(), "next", f.providers[i+1].Name(), "error", err)
		}
	}
	return nil, -1, errors.Join(errs...)
}

// Pin returns a view of the chain that sticks to whichever provider serves
// its first successful call. Later calls go to that provider only and fail
// when it fails, so vectors from one pinned view always share a space.
func (f *FallbackEmbedding) Pin() EmbeddingProvider {
	return &pinnedFallback{chain: f, served: -1}
}

type pinnedFallback struct {
	chain  *FallbackEmbedding
	mu     sync.Mutex
	served int
}

func (p *pinnedFallback) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.served >= 0 {
		return p.chain.providers[p.served].Name()
	}
	return p.chain.Name()
}

func (p *pinnedFallback) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.served >= 0 {
		return p.chain.providers[p.served].Dimensions()
	}
	return p.chain.Dimensions()
}

func (p *pinnedFallback) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.served >= 0 {
		return p.chain.providers[p.served].Embed(ctx, texts)
	}
	vecs, served, err := p.chain.embed(ctx, texts)
	if err == nil {
		p.served = served
	}
	return vecs, err
}

// Pinner is implemented by embedding providers whose backend may change
// from one call to the next.
type Pinner interface {
	Pin() EmbeddingProvider
}

// PinEmbedding returns p.Pin() when p is a Pinner and p otherwise. Use one
// pinned provider for every vector that will be compared with the others.
func PinEmbedding(p EmbeddingProvider) EmbeddingProvider {
	if pn, ok := p.(Pinner); ok {
		return pn.Pin()
	}
	return p
}

var (
	_ EmbeddingProvider = (*FallbackEmbedding)(nil)
	_ Pinner            = (*FallbackEmbedding)(nil)
)
