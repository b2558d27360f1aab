package offline

import (
	"context"
	"testing"

	"github.com/nevindra/docmind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnconfigured(t *testing.T) {
	_, err := Unconfigured{}.Chat(context.Background(), docmind.ChatRequest{})
	assert.ErrorIs(t, err, docmind.ErrServiceUnavailable)

	_, err = UnconfiguredEmbedding{}.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, docmind.ErrServiceUnavailable)
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestHashing_SimilarTextsScoreHigher(t *testing.T) {
	h := NewHashing(64)
	vecs, err := h.Embed(context.Background(), []string{
		"termination clause of the agreement",
		"The agreement's termination clause.",
		"patient diagnosis codes",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	for _, v := range vecs {
		assert.Len(t, v, 64)
	}

	assert.InDelta(t, 1.0, dot(vecs[0], vecs[0]), 1e-5)
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
	assert.Zero(t, dot(vecs[3], vecs[3]))
}

func TestHashing_Deterministic(t *testing.T) {
	a, _ := NewHashing(0).Embed(context.Background(), []string{"same text"})
	b, _ := NewHashing(0).Embed(context.Background(), []string{"same text"})
	assert.Equal(t, a, b)
	assert.Len(t, a[0], DefaultHashDimensions)
}

func TestHashing_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashing(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
