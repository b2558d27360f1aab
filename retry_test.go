package docmind

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(opts ...RetryOption) []RetryOption {
	return append([]RetryOption{RetryBaseDelay(time.Millisecond), RetryMaxDelay(2 * time.Millisecond)}, opts...)
}

func TestWithRetry_Chat_SucceedsFirstAttempt(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "hello"}},
	}}
	p := WithRetry(stub, fastRetry()...)

	resp, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 1, stub.Calls())
}

func TestWithRetry_Chat_RetriesTransientStatuses(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			stub := &stubProvider{results: []stubResult{
				{err: &ErrHTTP{Status: status, Body: "busy"}},
				{resp: ChatResponse{Content: "hello"}},
			}}
			p := WithRetry(stub, fastRetry()...)

			resp, err := p.Chat(context.Background(), ChatRequest{})
			require.NoError(t, err)
			assert.Equal(t, "hello", resp.Content)
			assert.Equal(t, 2, stub.Calls())
		})
	}
}

func TestWithRetry_Chat_NoRetryOnClientError(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{err: &ErrHTTP{Status: 400, Body: "bad request"}},
		{resp: ChatResponse{Content: "never"}},
	}}
	p := WithRetry(stub, fastRetry()...)

	_, err := p.Chat(context.Background(), ChatRequest{})
	var httpErr *ErrHTTP
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 400, httpErr.Status)
	assert.Equal(t, 1, stub.Calls())
}

func TestWithRetry_Chat_ExhaustsAttempts(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{err: &ErrHTTP{Status: 503}},
		{err: &ErrHTTP{Status: 503}},
		{err: &ErrHTTP{Status: 503}},
		{resp: ChatResponse{Content: "too late"}},
	}}
	p := WithRetry(stub, fastRetry(RetryMaxAttempts(3))...)

	_, err := p.Chat(context.Background(), ChatRequest{})
	var httpErr *ErrHTTP
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 503, httpErr.Status)
	assert.Equal(t, 3, stub.Calls())
}

func TestWithRetry_Chat_AttemptTimeoutIsRetried(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{block: true},
		{resp: ChatResponse{Content: "second"}},
	}}
	p := WithRetry(stub, fastRetry(RetryAttemptTimeout(10*time.Millisecond))...)

	resp, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)
	assert.Equal(t, 2, stub.Calls())
}

func TestWithRetry_Chat_CallerCancellationStops(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{block: true},
		{resp: ChatResponse{Content: "never"}},
	}}
	p := WithRetry(stub, fastRetry()...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Chat(ctx, ChatRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, stub.Calls())
}

func TestWithRetry_Name(t *testing.T) {
	p := WithRetry(&stubProvider{})
	assert.Equal(t, "stub", p.Name())
}

func TestWithEmbeddingRetry_RetriesThenSucceeds(t *testing.T) {
	stub := &stubEmbedding{errs: []error{&ErrHTTP{Status: 429, RetryAfter: time.Millisecond}}}
	p := WithEmbeddingRetry(stub, fastRetry()...)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, 2, p.Dimensions())
}

func TestWithLayoutRetry_ServiceUnavailableIsPermanent(t *testing.T) {
	unavailable := fmt.Errorf("azure: %w", ErrServiceUnavailable)
	stub := &stubLayout{errs: []error{unavailable, nil}}
	a := WithLayoutRetry(stub, fastRetry()...)

	_, err := a.Analyze(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, 1, stub.calls)
}

func TestWithLayoutRetry_PermanentMarkerStopsRetries(t *testing.T) {
	stub := &stubLayout{errs: []error{Permanent(&ErrHTTP{Status: 503}), nil}}
	a := WithLayoutRetry(stub, fastRetry()...)

	_, err := a.Analyze(context.Background(), []byte("x"))
	var h *ErrHTTP
	require.ErrorAs(t, err, &h)
	assert.Equal(t, 503, h.Status)
	assert.Equal(t, 1, stub.calls)
}

func TestWithLayoutRetry_RetriesServerError(t *testing.T) {
	stub := &stubLayout{errs: []error{&ErrHTTP{Status: 500}, nil}}
	a := WithLayoutRetry(stub, fastRetry()...)

	layout, err := a.Analyze(context.Background(), []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, "content", layout.Content)
	assert.Equal(t, 2, stub.calls)
}

func TestRetryAfterBackOff_UsesHintOnce(t *testing.T) {
	b := &retryAfterBackOff{BackOff: constBackOff(time.Millisecond), hint: time.Second}
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, time.Millisecond, b.NextBackOff())
}

type constBackOff time.Duration

func (c constBackOff) NextBackOff() time.Duration { return time.Duration(c) }
func (constBackOff) Reset()                        {}
