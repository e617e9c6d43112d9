package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// request accumulates per-call options before the URL is resolved.
type request struct {
	method  string
	path    string
	query   url.Values
	header  http.Header
	body    []byte
	timeout time.Duration
	noCache bool
	err     error
}

// Option customizes a single request.
type Option func(*request)

// WithQuery adds a query parameter. Repeated keys accumulate.
func WithQuery(key, value string) Option {
	return func(r *request) {
		if r.query == nil {
			r.query = url.Values{}
		}
		r.query.Add(key, value)
	}
}

// WithQueryValues merges a full set of query parameters.
func WithQueryValues(values url.Values) Option {
	return func(r *request) {
		if r.query == nil {
			r.query = url.Values{}
		}
		for k, vs := range values {
			for _, v := range vs {
				r.query.Add(k, v)
			}
		}
	}
}

// WithHeader sets a request header, replacing any default of the same
// name.
func WithHeader(key, value string) Option {
	return func(r *request) {
		if r.header == nil {
			r.header = http.Header{}
		}
		r.header.Set(key, value)
	}
}

// WithJSON marshals v as the request body and sets the content type.
func WithJSON(v any) Option {
	return func(r *request) {
		data, err := json.Marshal(v)
		if err != nil {
			r.err = fmt.Errorf("encode request body: %w", err)
			return
		}
		r.body = data
		if r.header == nil {
			r.header = http.Header{}
		}
		r.header.Set("Content-Type", "application/json")
	}
}

// WithBody sets a raw request body and its content type.
func WithBody(body []byte, contentType string) Option {
	return func(r *request) {
		r.body = body
		if contentType != "" {
			if r.header == nil {
				r.header = http.Header{}
			}
			r.header.Set("Content-Type", contentType)
		}
	}
}

// WithTimeout overrides the client's per-attempt timeout for this
// request.
func WithTimeout(d time.Duration) Option {
	return func(r *request) { r.timeout = d }
}

// WithoutCache bypasses the response cache for this request, both
// lookup and store.
func WithoutCache() Option {
	return func(r *request) { r.noCache = true }
}

func newRequest(method, path string, opts ...Option) *request {
	r := &request{method: method, path: path}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// builtRequest is a request with its URL resolved and headers merged,
// ready to be attempted.
type builtRequest struct {
	method  string
	url     string
	host    string
	header  http.Header
	body    []byte
	timeout time.Duration
	noCache bool
}

// build resolves the request against the client's base URL and merges
// the header layers: client defaults first, then per-request overrides.
func (c *Client) build(r *request) (*builtRequest, error) {
	if r.err != nil {
		return nil, &ValidationError{Reason: r.err.Error()}
	}
	if r.method == "" {
		return nil, &ValidationError{Reason: "method is empty"}
	}

	u, err := c.resolve(r.path)
	if err != nil {
		return nil, err
	}

	if len(r.query) > 0 {
		q := u.Query()
		for k, vs := range r.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	for k, vs := range c.cfg.DefaultHeaders {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", c.cfg.UserAgent)
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}
	for k, vs := range r.header {
		header.Del(k)
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	return &builtRequest{
		method:  strings.ToUpper(r.method),
		url:     u.String(),
		host:    u.Host,
		header:  header,
		body:    r.body,
		timeout: r.timeout,
		noCache: r.noCache,
	}, nil
}

// resolve turns a path or absolute URL into the full request URL.
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("parse %q: %v", path, err)}
	}

	var u *url.URL
	if c.base != nil {
		u = c.base.ResolveReference(ref)
	} else {
		u = ref
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ValidationError{Reason: fmt.Sprintf("unsupported scheme %q in %q", u.Scheme, u.String())}
	}
	if u.Host == "" {
		return nil, &ValidationError{Reason: fmt.Sprintf("no host in %q", u.String())}
	}
	return u, nil
}
