package docmind

import (
	"context"
	"sync"
)

// stubProvider returns pre-configured results in order.
type stubProvider struct {
	mu      sync.Mutex
	calls   int
	results []stubResult
}

type stubResult struct {
	resp  ChatResponse
	err   error
	block bool // wait for ctx to be done, then return ctx.Err()
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) next() stubResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.results) {
		return s.results[i]
	}
	return stubResult{}
}

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubProvider) Chat(ctx context.Context, _ ChatRequest) (ChatResponse, error) {
	r := s.next()
	if r.block {
		<-ctx.Done()
		return ChatResponse{}, ctx.Err()
	}
	return r.resp, r.err
}

type stubEmbedding struct {
	calls int
	errs  []error
}

func (s *stubEmbedding) Name() string    { return "stub-embed" }
func (s *stubEmbedding) Dimensions() int { return 2 }

func (s *stubEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	out := make([][]float32, len(texts))
	for j := range texts {
		out[j] = []float32{1, 0}
	}
	return out, nil
}

type stubLayout struct {
	calls int
	errs  []error
}

func (s *stubLayout) Name() string { return "stub-layout" }

func (s *stubLayout) Analyze(_ context.Context, content []byte) (Layout, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Layout{}, s.errs[i]
	}
	return Layout{Content: string(content)}, nil
}

var (
	_ Provider          = (*stubProvider)(nil)
	_ EmbeddingProvider = (*stubEmbedding)(nil)
	_ LayoutAnalyzer    = (*stubLayout)(nil)
)
