package auth

import (
	"context"
	"net/http"
	"strings"
)

// Provider supplies authentication headers for outbound requests.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Headers should honor cancellation/deadlines when it refreshes.
// - Errors: Headers returns a typed error when no usable credential exists.
type Provider interface {
	// Name returns a unique identifier for this provider.
	Name() string

	// Valid reports whether the provider can currently produce a
	// usable credential. The client checks this before each call and
	// fails fast instead of sending a doomed request.
	Valid() bool

	// Headers returns the headers to attach to the request.
	Headers(ctx context.Context) (http.Header, error)
}

// BearerProvider attaches a static bearer token.
type BearerProvider struct {
	token string
}

// NewBearerProvider creates a provider for a static bearer token.
func NewBearerProvider(token string) *BearerProvider {
	return &BearerProvider{token: strings.TrimSpace(token)}
}

// Name returns "bearer".
func (p *BearerProvider) Name() string { return "bearer" }

// Valid reports whether a token is present.
func (p *BearerProvider) Valid() bool { return p.token != "" }

// Headers returns the Authorization header.
func (p *BearerProvider) Headers(_ context.Context) (http.Header, error) {
	if p.token == "" {
		return nil, ErrMissingCredentials
	}
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+p.token)
	return h, nil
}

// APIKeyConfig configures APIKeyProvider.
type APIKeyConfig struct {
	// Key is the API key value.
	Key string

	// HeaderName is the header the key is sent in.
	// Default: "X-API-Key"
	HeaderName string
}

// APIKeyProvider attaches a static API key header.
type APIKeyProvider struct {
	cfg APIKeyConfig
}

// NewAPIKeyProvider creates a provider for a static API key.
func NewAPIKeyProvider(cfg APIKeyConfig) *APIKeyProvider {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-API-Key"
	}
	return &APIKeyProvider{cfg: cfg}
}

// Name returns "api_key".
func (p *APIKeyProvider) Name() string { return "api_key" }

// Valid reports whether a key is present.
func (p *APIKeyProvider) Valid() bool { return p.cfg.Key != "" }

// Headers returns the API key header.
func (p *APIKeyProvider) Headers(_ context.Context) (http.Header, error) {
	if p.cfg.Key == "" {
		return nil, ErrMissingCredentials
	}
	h := make(http.Header, 1)
	h.Set(p.cfg.HeaderName, p.cfg.Key)
	return h, nil
}
