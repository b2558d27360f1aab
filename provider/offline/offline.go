// Package offline provides capability implementations that need no remote
// service: an unconfigured completer and embedder that report
// docmind.ErrServiceUnavailable, and a deterministic feature-hashing embedder
// usable as the last link of an embedding fallback chain.
package offline

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/nevindra/docmind"
)

// Unconfigured is a completion provider that always fails with
// docmind.ErrServiceUnavailable.
type Unconfigured struct{}

// Name returns "unconfigured".
func (Unconfigured) Name() string { return "unconfigured" }

// Chat always fails.
func (Unconfigured) Chat(context.Context, docmind.ChatRequest) (docmind.ChatResponse, error) {
	return docmind.ChatResponse{}, fmt.Errorf("completion: no provider configured: %w", docmind.ErrServiceUnavailable)
}

// UnconfiguredEmbedding is an embedding provider that always fails with
// docmind.ErrServiceUnavailable.
type UnconfiguredEmbedding struct{}

// Name returns "unconfigured".
func (UnconfiguredEmbedding) Name() string { return "unconfigured" }

// Dimensions returns 0.
func (UnconfiguredEmbedding) Dimensions() int { return 0 }

// Embed always fails.
func (UnconfiguredEmbedding) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding: no provider configured: %w", docmind.ErrServiceUnavailable)
}

// DefaultHashDimensions is the vector size of a zero-value Hashing embedder.
const DefaultHashDimensions = 256

// Hashing embeds text by hashing lower-cased word tokens into a fixed number
// of buckets and L2-normalizing the counts. Texts sharing vocabulary land
// close together under cosine similarity.
type Hashing struct {
	Dims int
}

// NewHashing returns a Hashing embedder with dims buckets (DefaultHashDimensions if dims <= 0).
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &Hashing{Dims: dims}
}

// Name returns "hashing".
func (h *Hashing) Name() string { return "hashing" }

// Dimensions returns the bucket count.
func (h *Hashing) Dimensions() int {
	if h.Dims <= 0 {
		return DefaultHashDimensions
	}
	return h.Dims
}

// Embed never fails except on a cancelled context.
func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float32 {
	dims := h.Dimensions()
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[f.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

var (
	_ docmind.Provider          = Unconfigured{}
	_ docmind.EmbeddingProvider = UnconfiguredEmbedding{}
	_ docmind.EmbeddingProvider = (*Hashing)(nil)
)
