// Package azure implements docmind.LayoutAnalyzer on Azure AI Document
// Intelligence (Form Recognizer) using the prebuilt-layout model.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nevindra/docmind"
)

const (
	defaultModel      = "prebuilt-layout"
	defaultAPIVersion = "2023-07-31"
	defaultPoll       = time.Second
	defaultPollRetry  = 5
)

// Analyzer submits documents to the analyze endpoint and polls the returned
// operation until it finishes.
type Analyzer struct {
	endpoint     string
	key          string
	model        string
	apiVersion   string
	pollInterval time.Duration
	pollRetries  int
	httpClient   *http.Client
	logger       *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithModel selects another prebuilt model (e.g. "prebuilt-document").
func WithModel(m string) Option { return func(a *Analyzer) { a.model = m } }

// WithAPIVersion overrides the REST api-version.
func WithAPIVersion(v string) Option { return func(a *Analyzer) { a.apiVersion = v } }

// WithPollInterval sets the delay between operation status checks (default 1s).
func WithPollInterval(d time.Duration) Option { return func(a *Analyzer) { a.pollInterval = d } }

// WithPollRetries sets how many consecutive throttled or failed status checks
// are retried against the same operation before giving up (default 5).
func WithPollRetries(n int) Option { return func(a *Analyzer) { a.pollRetries = n } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(a *Analyzer) { a.httpClient = c } }

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option { return func(a *Analyzer) { a.logger = l } }

// New creates an Analyzer. Empty endpoint or key yields an analyzer that
// reports docmind.ErrServiceUnavailable.
func New(endpoint, key string, opts ...Option) *Analyzer {
	a := &Analyzer{
		endpoint:     strings.TrimRight(endpoint, "/"),
		key:          key,
		model:        defaultModel,
		apiVersion:   defaultAPIVersion,
		pollInterval: defaultPoll,
		pollRetries:  defaultPollRetry,
		httpClient:   &http.Client{},
		logger:       docmind.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns "azure".
func (a *Analyzer) Name() string { return "azure" }

// Analyze runs layout analysis over content. Only the submit step may be
// repeated by a retry wrapper: once Azure accepted the document every error
// is docmind.Permanent, and throttled or 5xx status checks are retried here
// against the same operation.
func (a *Analyzer) Analyze(ctx context.Context, content []byte) (docmind.Layout, error) {
	if a.endpoint == "" || a.key == "" {
		return docmind.Layout{}, fmt.Errorf("azure: endpoint or key not set: %w", docmind.ErrServiceUnavailable)
	}

	opURL, err := a.submit(ctx, content)
	if err != nil {
		return docmind.Layout{}, err
	}
	a.logger.Debug("azure: analysis submitted", "model", a.model, "operation", opURL)

	l, err := a.await(ctx, opURL)
	return l, docmind.Permanent(err)
}

func (a *Analyzer) await(ctx context.Context, opURL string) (docmind.Layout, error) {
	failures := 0
	for {
		delay := a.pollInterval
		op, err := a.poll(ctx, opURL)
		switch {
		case err != nil:
			if !pollRetryable(ctx, err) || failures >= a.pollRetries {
				return docmind.Layout{}, err
			}
			failures++
			var h *docmind.ErrHTTP
			if errors.As(err, &h) && h.RetryAfter > delay {
				delay = h.RetryAfter
			}
			a.logger.Warn("azure: status check failed, retrying", "operation", opURL, "attempt", failures, "next_delay", delay, "error", err)
		default:
			failures = 0
			switch strings.ToLower(op.Status) {
			case "succeeded":
				if op.AnalyzeResult == nil {
					return docmind.Layout{}, fmt.Errorf("azure: operation succeeded without analyzeResult")
				}
				return op.AnalyzeResult.layout(), nil
			case "failed", "canceled":
				msg := op.Status
				if op.Error != nil {
					msg = op.Error.Code + ": " + op.Error.Message
				}
				return docmind.Layout{}, fmt.Errorf("azure: analysis %s", msg)
			}
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return docmind.Layout{}, ctx.Err()
		case <-t.C:
		}
	}
}

// pollRetryable reports whether a failed status check can be repeated.
func pollRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var h *docmind.ErrHTTP
	if errors.As(err, &h) {
		return h.Status == http.StatusTooManyRequests || h.Status >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func (a *Analyzer) submit(ctx context.Context, content []byte) (string, error) {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s", a.endpoint, a.model, a.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("azure: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("azure: analyze request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return "", docmind.NewErrHTTP(resp, string(body))
	}
	loc := resp.Header.Get("Operation-Location")
	if loc == "" {
		return "", fmt.Errorf("azure: response missing Operation-Location")
	}
	return loc, nil
}

func (a *Analyzer) poll(ctx context.Context, opURL string) (*operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: create poll request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: poll request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: read poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, docmind.NewErrHTTP(resp, string(body))
	}
	var op operation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, fmt.Errorf("azure: parse poll response: %w", err)
	}
	return &op, nil
}

type operation struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type analyzeResult struct {
	Content string `json:"content"`
	Pages   []struct {
		PageNumber int `json:"pageNumber"`
		Lines      []struct {
			Content string `json:"content"`
		} `json:"lines"`
	} `json:"pages"`
	Tables []struct {
		RowCount    int `json:"rowCount"`
		ColumnCount int `json:"columnCount"`
		Cells       []struct {
			RowIndex    int    `json:"rowIndex"`
			ColumnIndex int    `json:"columnIndex"`
			Content     string `json:"content"`
		} `json:"cells"`
	} `json:"tables"`
	KeyValuePairs []struct {
		Key *struct {
			Content string `json:"content"`
		} `json:"key"`
		Value *struct {
			Content string `json:"content"`
		} `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"keyValuePairs"`
}

func (r *analyzeResult) layout() docmind.Layout {
	l := docmind.Layout{Content: r.Content}
	for _, p := range r.Pages {
		lines := make([]string, len(p.Lines))
		for i, ln := range p.Lines {
			lines[i] = ln.Content
		}
		l.Pages = append(l.Pages, docmind.LayoutPage{Number: p.PageNumber, Text: strings.Join(lines, "\n")})
	}
	for _, t := range r.Tables {
		lt := docmind.LayoutTable{RowCount: t.RowCount, ColumnCount: t.ColumnCount}
		for _, c := range t.Cells {
			lt.Cells = append(lt.Cells, docmind.LayoutCell{Row: c.RowIndex, Column: c.ColumnIndex, Content: c.Content})
		}
		l.Tables = append(l.Tables, lt)
	}
	for _, kv := range r.KeyValuePairs {
		if kv.Key == nil {
			continue
		}
		item := docmind.KeyValue{Key: kv.Key.Content, Confidence: kv.Confidence}
		if kv.Value != nil {
			item.Value = kv.Value.Content
		}
		l.KeyValuePairs = append(l.KeyValuePairs, item)
	}
	return l
}

var _ docmind.LayoutAnalyzer = (*Analyzer)(nil)
