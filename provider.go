package docmind

import (
	"context"
	"io"
)

// Provider abstracts the text completion backend.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Name returns the provider name (e.g. "openai", "gemini").
	Name() string
}

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// LayoutAnalyzer abstracts document layout analysis (OCR, tables, key-value pairs).
// Implementations that are not configured return an error wrapping
// ErrServiceUnavailable so callers can select their degraded path.
type LayoutAnalyzer interface {
	Analyze(ctx context.Context, content []byte) (Layout, error)
	Name() string
}

// ArtifactStore persists result artifacts under caller-chosen ids.
type ArtifactStore interface {
	// Put stores data under id and returns a backend-specific location.
	Put(ctx context.Context, id string, data []byte) (string, error)
	// Open returns a reader for a previously stored artifact.
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Name() string
}

// Generate runs a single system + user completion and returns the text.
func Generate(ctx context.Context, p Provider, system, user string) (string, error) {
	return generate(ctx, p, system, user, false)
}

// GenerateJSON is Generate with JSON-object output requested from the backend.
// Callers still parse and validate the returned text.
func GenerateJSON(ctx context.Context, p Provider, system, user string) (string, error) {
	return generate(ctx, p, system, user, true)
}

func generate(ctx context.Context, p Provider, system, user string, jsonOut bool) (string, error) {
	req := ChatRequest{
		Messages:   []ChatMessage{SystemMessage(system), UserMessage(user)},
		JSONOutput: jsonOut,
	}
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return "", &ServiceError{Capability: "completion", Provider: p.Name(), Err: err}
	}
	return resp.Content, nil
}
