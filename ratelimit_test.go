package docmind

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRateLimit_AllowsWithinBurst(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "a"}},
		{resp: ChatResponse{Content: "b"}},
	}}
	p := WithRateLimit(stub, RPM(60), Burst(2))

	for _, want := range []string{"a", "b"} {
		resp, err := p.Chat(context.Background(), ChatRequest{})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
	}
}

func TestWithRateLimit_BlocksWhenExceeded(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "a"}},
		{resp: ChatResponse{Content: "b"}},
	}}
	// one request per minute: the second call cannot fit in 50ms.
	p := WithRateLimit(stub, RPM(1))

	_, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Chat(ctx, ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, stub.Calls())
}

func TestWithRateLimit_ZeroRPMIsUnlimited(t *testing.T) {
	stub := &stubProvider{}
	p := WithRateLimit(stub)
	for range 5 {
		_, err := p.Chat(context.Background(), ChatRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, 5, stub.Calls())
}

func TestWithEmbeddingRateLimit_Delegates(t *testing.T) {
	stub := &stubEmbedding{}
	p := WithEmbeddingRateLimit(stub, RPM(600))
	vecs, err := p.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, "stub-embed", p.Name())
}

func TestWithLayoutRateLimit_Delegates(t *testing.T) {
	a := WithLayoutRateLimit(&stubLayout{}, RPM(600))
	layout, err := a.Analyze(context.Background(), []byte("page"))
	require.NoError(t, err)
	assert.Equal(t, "page", layout.Content)
}
