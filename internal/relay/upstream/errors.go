package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is returned when the provider responds with a non-2xx
// status.
//
// RawResponse holds the provider response body bytes and must never
// include API keys.
type ProviderError struct {
	StatusCode  int
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream request failed: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream request failed: %s", e.Message)
}

// Retryable reports whether the status is worth another attempt.
// 429 and 5xx are transient; every other 4xx is a hard rejection.
func (e *ProviderError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// MalformedError is returned when a 2xx response fails shape validation.
// The upstream is occasionally transiently inconsistent, so callers
// retry these the same as network failures.
type MalformedError struct {
	Reason      string
	RawResponse []byte
}

func (e *MalformedError) Error() string {
	if e == nil {
		return "malformed upstream response"
	}
	return "malformed upstream response: " + e.Reason
}

// ErrNoContent is returned when a validated response trims down to an
// empty string.
var ErrNoContent = errors.New("upstream returned no content")

// ExhaustedError is returned after the attempt budget is spent. It
// wraps the last underlying failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("upstream call failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
