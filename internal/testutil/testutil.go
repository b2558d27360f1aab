// Package testutil provides scripted capability fakes for package tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nevindra/docmind"
)

// Reply is one scripted completion outcome.
type Reply struct {
	Text string
	Err  error
}

// Completion returns scripted replies in order and records every request.
// Once the script is exhausted the last reply repeats.
type Completion struct {
	mu       sync.Mutex
	replies  []Reply
	requests []docmind.ChatRequest
}

// NewCompletion scripts successful text replies.
func NewCompletion(texts ...string) *Completion {
	c := &Completion{}
	for _, t := range texts {
		c.replies = append(c.replies, Reply{Text: t})
	}
	return c
}

// FailingCompletion always returns err.
func FailingCompletion(err error) *Completion {
	return &Completion{replies: []Reply{{Err: err}}}
}

func (c *Completion) Name() string { return "scripted" }

func (c *Completion) Chat(ctx context.Context, req docmind.ChatRequest) (docmind.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if err := ctx.Err(); err != nil {
		return docmind.ChatResponse{}, err
	}
	if len(c.replies) == 0 {
		return docmind.ChatResponse{}, errors.New("testutil: no scripted reply")
	}
	i := min(len(c.requests)-1, len(c.replies)-1)
	r := c.replies[i]
	if r.Err != nil {
		return docmind.ChatResponse{}, r.Err
	}
	return docmind.ChatResponse{Content: r.Text}, nil
}

// Calls returns the number of Chat calls so far.
func (c *Completion) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Requests returns a copy of every recorded request.
func (c *Completion) Requests() []docmind.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]docmind.ChatRequest(nil), c.requests...)
}

// Prompt returns the concatenated message contents of request i.
func (c *Completion) Prompt(i int) string {
	reqs := c.Requests()
	if i >= len(reqs) {
		return ""
	}
	parts := make([]string, 0, len(reqs[i].Messages))
	for _, m := range reqs[i].Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// Embedding returns a constant unit vector for every text, or Err when set.
// FailOn > 0 makes only that call (1-based) fail.
type Embedding struct {
	Err    error
	FailOn int

	mu    sync.Mutex
	calls int
}

func (e *Embedding) Name() string    { return "scripted-embed" }
func (e *Embedding) Dimensions() int { return 2 }

func (e *Embedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	if n == e.FailOn {
		return nil, fmt.Errorf("scripted embedding failure on call %d", n)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// Calls returns the number of Embed calls so far.
func (e *Embedding) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Layout returns Result (or the raw content as text when Result.Content is
// empty), or Err when set.
type Layout struct {
	Result docmind.Layout
	Err    error

	mu    sync.Mutex
	calls int
}

func (l *Layout) Name() string { return "scripted-layout" }

func (l *Layout) Analyze(_ context.Context, content []byte) (docmind.Layout, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.Err != nil {
		return docmind.Layout{}, l.Err
	}
	out := l.Result
	if out.Content == "" {
		out.Content = string(content)
	}
	return out, nil
}

// Calls returns the number of Analyze calls so far.
func (l *Layout) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Artifacts is an in-memory ArtifactStore.
type Artifacts struct {
	PutErr error

	mu    sync.Mutex
	items map[string][]byte
}

func NewArtifacts() *Artifacts { return &Artifacts{items: map[string][]byte{}} }

func (a *Artifacts) Name() string { return "memory" }

func (a *Artifacts) Put(_ context.Context, id string, data []byte) (string, error) {
	if a.PutErr != nil {
		return "", a.PutErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items[id] = append([]byte(nil), data...)
	return "memory://" + id, nil
}

func (a *Artifacts) Open(_ context.Context, id string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.items[id]
	if !ok {
		return nil, fmt.Errorf("testutil: artifact %s: %w", id, os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Get returns the stored bytes for id.
func (a *Artifacts) Get(id string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.items[id]
	return data, ok
}

// Len returns the number of stored artifacts.
func (a *Artifacts) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

var (
	_ docmind.Provider          = (*Completion)(nil)
	_ docmind.EmbeddingProvider = (*Embedding)(nil)
	_ docmind.LayoutAnalyzer    = (*Layout)(nil)
	_ docmind.ArtifactStore     = (*Artifacts)(nil)
)
