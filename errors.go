package docmind

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnsupportedFormat is returned when a document's extension is not
	// accepted by the component asked to read it.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrServiceUnavailable is returned by a capability that is not
	// configured (missing credentials or endpoint).
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrParse marks a service response that could not be parsed as the
	// structure the caller expected.
	ErrParse = errors.New("unparseable response")
)

type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP is a non-2xx response from an external service.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration // parsed Retry-After; 0 when absent
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// NewErrHTTP builds an ErrHTTP from a response and its already-read body.
func NewErrHTTP(resp *http.Response, body string) *ErrHTTP {
	return &ErrHTTP{
		Status:     resp.StatusCode,
		Body:       body,
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// ParseRetryAfter parses a Retry-After header given either as delta
// seconds or as an HTTP date. It returns 0 for empty or invalid values.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ServiceError wraps a failure of an external capability call after
// retries were exhausted or the error was classified as permanent.
type ServiceError struct {
	Capability string // "completion", "embedding", "layout"
	Provider   string
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Capability, e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// PermanentError marks a failure the retry wrappers must not repeat, such as
// one raised after a non-idempotent request was already accepted.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err in a PermanentError. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
