package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonwraymond/httpkit/resilience"
)

// ConnectionError means the transport could not reach the dependency.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("client: connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError means an attempt exceeded its time budget, whether the
// per-attempt timeout or the breaker's hard call timeout.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("client: request to %s timed out after %s", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// AuthError means credentials were missing, expired or rejected. A zero
// StatusCode means the request was never sent: the provider had no
// usable credential.
type AuthError struct {
	StatusCode int
	URL        string
	Provider   string
	Body       []byte
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("client: no usable credential from provider %q: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("client: request to %s rejected with status %d", e.URL, e.StatusCode)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError means the request itself was wrong. A retry cannot
// fix it.
type ValidationError struct {
	StatusCode int
	URL        string
	Reason     string
	Body       []byte
}

func (e *ValidationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("client: invalid request: %s", e.Reason)
	}
	return fmt.Sprintf("client: request to %s rejected with status %d", e.URL, e.StatusCode)
}

// RateLimitError means the dependency, or the client's own limiter,
// asked us to slow down. RetryAfter is the server-advised wait, zero
// when the server did not advise one.
type RateLimitError struct {
	StatusCode int
	URL        string
	RetryAfter time.Duration
	Body       []byte
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("client: local rate limit exceeded for %s", e.URL)
	}
	return fmt.Sprintf("client: request to %s rate limited (status %d)", e.URL, e.StatusCode)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ServerError means the dependency answered with a 5xx status.
type ServerError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("client: request to %s failed with status %d", e.URL, e.StatusCode)
}

// RetryExhaustedError means every allowed attempt failed. It wraps the
// error observed on the final attempt.
type RetryExhaustedError struct {
	Attempts int
	URL      string
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("client: request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// errorFromStatus converts a non-2xx response into its typed error.
func errorFromStatus(status int, url string, header http.Header, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{StatusCode: status, URL: url, Body: body}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{
			StatusCode: status,
			URL:        url,
			RetryAfter: parseRetryAfter(header.Get("Retry-After")),
			Body:       body,
		}
	case status >= 500:
		return &ServerError{StatusCode: status, URL: url, Body: body}
	default:
		return &ValidationError{StatusCode: status, URL: url, Body: body}
	}
}

// classifyTransport converts a transport-level error into its typed
// form. Cancellation passes through untouched so callers can match it
// with errors.Is.
func classifyTransport(url string, timeout time.Duration, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	return &ConnectionError{URL: url, Err: err}
}

// kindOf maps a typed error onto the failure classification that drives
// retry decisions.
func kindOf(err error) resilience.FailureKind {
	if err == nil {
		return resilience.FailureNone
	}
	if errors.Is(err, context.Canceled) {
		return resilience.FailureCanceled
	}
	if errors.Is(err, resilience.ErrCallTimeout) {
		return resilience.FailureTimeout
	}

	var (
		connErr    *ConnectionError
		timeoutErr *TimeoutError
		authErr    *AuthError
		valErr     *ValidationError
		rateErr    *RateLimitError
		srvErr     *ServerError
	)
	switch {
	case errors.As(err, &connErr):
		return resilience.FailureConnection
	case errors.As(err, &timeoutErr):
		return resilience.FailureTimeout
	case errors.As(err, &authErr):
		return resilience.FailureAuth
	case errors.As(err, &valErr):
		return resilience.FailureValidation
	case errors.As(err, &rateErr):
		return resilience.FailureRateLimited
	case errors.As(err, &srvErr):
		return resilience.FailureServer
	default:
		return resilience.FailureConnection
	}
}

// statusOf returns the HTTP status carried by a typed error, or 0.
func statusOf(err error) int {
	var (
		authErr *AuthError
		valErr  *ValidationError
		rateErr *RateLimitError
		srvErr  *ServerError
	)
	switch {
	case errors.As(err, &authErr):
		return authErr.StatusCode
	case errors.As(err, &valErr):
		return valErr.StatusCode
	case errors.As(err, &rateErr):
		return rateErr.StatusCode
	case errors.As(err, &srvErr):
		return srvErr.StatusCode
	default:
		return 0
	}
}

// retryAfterOf returns the server-advised wait carried by a rate limit
// error, or 0.
func retryAfterOf(err error) time.Duration {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}
	return 0
}

// parseRetryAfter parses a Retry-After header value, either delta
// seconds or an HTTP date. Unparseable or negative values yield 0.
func parseRetryAfter(v string) time.Duration {
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
