package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Response is the immutable result of a successful call. The body has
// been read in full; the underlying connection is already back in the
// transport's pool by the time the caller sees it.
type Response struct {
	// StatusCode is the HTTP status of the final attempt.
	StatusCode int

	// Status is the status line, e.g. "200 OK".
	Status string

	// Header holds the response headers. Multi-valued headers keep
	// every value.
	Header http.Header

	// Body is the full response body.
	Body []byte

	// URL is the absolute URL the request was sent to.
	URL string

	// Duration is the wall-clock time of the successful attempt.
	Duration time.Duration

	// FromCache reports whether the response was served from the
	// response cache without touching the network.
	FromCache bool
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON unmarshals the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("client: decode response from %s: %w", r.URL, err)
	}
	return nil
}

// cachedResponse is the encoding stored in the response cache.
type cachedResponse struct {
	StatusCode int         `json:"status_code"`
	Status     string      `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	URL        string      `json:"url"`
}

func encodeResponse(r *Response) ([]byte, error) {
	return json.Marshal(cachedResponse{
		StatusCode: r.StatusCode,
		Status:     r.Status,
		Header:     r.Header,
		Body:       r.Body,
		URL:        r.URL,
	})
}

func decodeResponse(data []byte) (*Response, error) {
	var c cachedResponse
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: c.StatusCode,
		Status:     c.Status,
		Header:     c.Header,
		Body:       c.Body,
		URL:        c.URL,
		FromCache:  true,
	}, nil
}
