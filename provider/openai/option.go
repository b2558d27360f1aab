package openai

import (
	"log/slog"
	"net/http"

	"github.com/nevindra/docmind"
)

type options struct {
	baseURL     string
	httpClient  *http.Client
	temperature float32
	logger      *slog.Logger
}

// Option configures a Provider or Embedding.
type Option func(*options)

// WithBaseURL points the client at an OpenAI-compatible endpoint
// (e.g. "http://localhost:11434/v1").
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTemperature sets the default sampling temperature (default 0.1).
func WithTemperature(t float32) Option {
	return func(o *options) { o.temperature = t }
}

// WithLogger sets a structured logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{temperature: 0.1, logger: docmind.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
