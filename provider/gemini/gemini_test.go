package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nevindra/docmind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	orig := baseURL
	baseURL = srv.URL
	t.Cleanup(func() {
		baseURL = orig
		srv.Close()
	})
}

func TestChat_SystemInstructionAndJSONMime(t *testing.T) {
	var body map[string]any
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[
			{"text":"thinking...","thought":true},
			{"text":"{\"a\":"},{"text":"1}"}
		]}}],"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":2}}`))
	})

	g := New("k", "gemini-2.0-flash")
	resp, err := g.Chat(context.Background(), docmind.ChatRequest{
		Messages:   []docmind.ChatMessage{docmind.SystemMessage("be strict"), docmind.UserMessage("hello")},
		JSONOutput: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, docmind.Usage{InputTokens: 7, OutputTokens: 2}, resp.Usage)

	sys := body["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "be strict", sys["text"])
	contents := body["contents"].([]any)
	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].(map[string]any)["role"])
	cfg := body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
}

func TestChat_RetryInfoFromBody(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"7s"}]}}`))
	})

	_, err := New("k", "m").Chat(context.Background(), docmind.ChatRequest{Messages: []docmind.ChatMessage{docmind.UserMessage("x")}})
	var h *docmind.ErrHTTP
	require.ErrorAs(t, err, &h)
	assert.Equal(t, 429, h.Status)
	assert.Equal(t, 7*time.Second, h.RetryAfter)
}

func TestChat_NoKey(t *testing.T) {
	_, err := New("", "m").Chat(context.Background(), docmind.ChatRequest{})
	assert.ErrorIs(t, err, docmind.ErrServiceUnavailable)
}

func TestEmbed_OneRequestPerText(t *testing.T) {
	calls := 0
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 3, body["outputDimensionality"])
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.5,0.25,1]}}`))
	})

	vecs, err := NewEmbedding("k", "text-embedding-004", 3).Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, [][]float32{{0.5, 0.25, 1}, {0.5, 0.25, 1}}, vecs)
}

func TestParseRetryInfo_Garbage(t *testing.T) {
	assert.Zero(t, parseRetryInfo("not json"))
	assert.Zero(t, parseRetryInfo(`{"error":{"details":[{"@type":"other","retryDelay":"3s"}]}}`))
}
