package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nevindra/docmind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_SendsMessagesAndParsesReply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	}))
	defer srv.Close()

	p := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1"))
	text, err := docmind.GenerateJSON(context.Background(), p, "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user prompt", msgs[1].(map[string]any)["content"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestChat_MapsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	p := New("sk-test", "m", WithBaseURL(srv.URL+"/v1"))
	_, err := p.Chat(context.Background(), docmind.ChatRequest{Messages: []docmind.ChatMessage{docmind.UserMessage("hi")}})
	var h *docmind.ErrHTTP
	require.ErrorAs(t, err, &h)
	assert.Equal(t, 429, h.Status)
}

func TestChat_NoKeyIsUnavailable(t *testing.T) {
	p := New("", "m")
	_, err := p.Chat(context.Background(), docmind.ChatRequest{})
	assert.ErrorIs(t, err, docmind.ErrServiceUnavailable)
}

func TestEmbed_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"model":"m","usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e := NewEmbedding("sk-test", "text-embedding-3-small", 2, WithBaseURL(srv.URL+"/v1"))
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, 2, e.Dimensions())
}

func TestEmbed_NoKeyIsUnavailable(t *testing.T) {
	_, err := NewEmbedding("", "m", 0).Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, docmind.ErrServiceUnavailable)
}
