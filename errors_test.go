package docmind

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrLLMError(t *testing.T) {
	e := &ErrLLM{Provider: "gemini", Message: "rate limited"}
	assert.Equal(t, "gemini: rate limited", e.Error())
}

func TestErrHTTPError(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{429, "too many requests", "http 429: too many requests"},
		{500, "internal server error", "http 500: internal server error"},
	}
	for _, tt := range tests {
		e := &ErrHTTP{Status: tt.status, Body: tt.body}
		assert.Equal(t, tt.want, e.Error())
	}
}

func TestNewErrHTTP_ReadsRetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"7"}}}
	e := NewErrHTTP(resp, "slow down")
	assert.Equal(t, 429, e.Status)
	assert.Equal(t, 7*time.Second, e.RetryAfter)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), ParseRetryAfter(""))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("-3"))
	assert.Equal(t, 2*time.Second, ParseRetryAfter(" 2 "))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	d := ParseRetryAfter(future)
	assert.Greater(t, d, 58*time.Minute)
}

func TestServiceErrorUnwraps(t *testing.T) {
	inner := &ErrHTTP{Status: 502}
	err := &ServiceError{Capability: "completion", Provider: "openai", Err: inner}

	var h *ErrHTTP
	assert.True(t, errors.As(err, &h))
	assert.Equal(t, "completion (openai): http 502: ", err.Error())
}
