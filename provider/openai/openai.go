// Package openai implements the completion and embedding providers for the
// OpenAI API and any OpenAI-compatible endpoint (set a base URL).
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nevindra/docmind"
	goopenai "github.com/sashabaranov/go-openai"
)

// Provider implements docmind.Provider on the chat completions API.
type Provider struct {
	client      *goopenai.Client
	model       string
	temperature float32
	configured  bool
	logger      *slog.Logger
}

// New creates a chat provider. An empty apiKey yields a provider whose calls
// fail with docmind.ErrServiceUnavailable unless a base URL is set (local
// OpenAI-compatible servers often need no key).
func New(apiKey, model string, opts ...Option) *Provider {
	o := newOptions(opts)
	cfg := goopenai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return &Provider{
		client:      goopenai.NewClientWithConfig(cfg),
		model:       model,
		temperature: o.temperature,
		configured:  apiKey != "" || o.baseURL != "",
		logger:      o.logger,
	}
}

// Name returns "openai".
func (p *Provider) Name() string { return "openai" }

// Chat sends a non-streaming chat completion request.
func (p *Provider) Chat(ctx context.Context, req docmind.ChatRequest) (docmind.ChatResponse, error) {
	if !p.configured {
		return docmind.ChatResponse{}, fmt.Errorf("openai: api key not set: %w", docmind.ErrServiceUnavailable)
	}

	msgs := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	temp := p.temperature
	if req.Temperature != nil {
		temp = float32(*req.Temperature)
	}
	creq := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: temp,
	}
	if req.JSONOutput {
		creq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		p.logger.Debug("openai: chat failed", "model", p.model, "error", err)
		return docmind.ChatResponse{}, mapErr(err)
	}
	if len(resp.Choices) == 0 {
		return docmind.ChatResponse{}, &docmind.ErrLLM{Provider: "openai", Message: "response has no choices"}
	}
	return docmind.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: docmind.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Embedding implements docmind.EmbeddingProvider on the embeddings API.
type Embedding struct {
	client     *goopenai.Client
	model      string
	dims       int
	configured bool
}

// NewEmbedding creates an embedding provider. dims is sent as the requested
// output dimensionality when > 0.
func NewEmbedding(apiKey, model string, dims int, opts ...Option) *Embedding {
	o := newOptions(opts)
	cfg := goopenai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return &Embedding{
		client:     goopenai.NewClientWithConfig(cfg),
		model:      model,
		dims:       dims,
		configured: apiKey != "" || o.baseURL != "",
	}
}

// Name returns "openai".
func (e *Embedding) Name() string { return "openai" }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

// Embed embeds all texts in one request. Vectors are returned in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.configured {
		return nil, fmt.Errorf("openai: api key not set: %w", docmind.ErrServiceUnavailable)
	}
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(e.model),
		Dimensions: e.dims,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &docmind.ErrLLM{Provider: "openai", Message: fmt.Sprintf("got %d embeddings for %d texts", len(resp.Data), len(texts))}
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &docmind.ErrLLM{Provider: "openai", Message: fmt.Sprintf("embedding index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// mapErr converts go-openai errors into docmind.ErrHTTP so the shared retry
// policy can classify them.
func mapErr(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &docmind.ErrHTTP{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &docmind.ErrHTTP{Status: reqErr.HTTPStatusCode, Body: body}
	}
	return &docmind.ErrLLM{Provider: "openai", Message: err.Error()}
}

var (
	_ docmind.Provider          = (*Provider)(nil)
	_ docmind.EmbeddingProvider = (*Embedding)(nil)
)
