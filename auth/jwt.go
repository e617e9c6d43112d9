package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// TokenSource produces a fresh JWT when the cached one is missing or
// expired. Implementations typically call a token endpoint.
type TokenSource interface {
	// Token returns a signed JWT.
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// TokenCache holds one token together with its expiry. It is an
// explicit object injected into the provider, with an injectable clock,
// so tests can control time and no token state is process-global.
type TokenCache struct {
	clock func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time // zero means no expiry claim
}

// NewTokenCache creates a token cache. A nil clock defaults to time.Now.
func NewTokenCache(clock func() time.Time) *TokenCache {
	if clock == nil {
		clock = time.Now
	}
	return &TokenCache{clock: clock}
}

// Get returns the cached token, or ("", false) when empty or expired.
func (c *TokenCache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" {
		return "", false
	}
	if !c.expiresAt.IsZero() && !c.clock().Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// Set stores a token and its expiry. A zero expiresAt means the token
// does not expire.
func (c *TokenCache) Set(token string, expiresAt time.Time) {
	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()
}

// Clear drops the cached token.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// JWTConfig configures JWTProvider.
type JWTConfig struct {
	// Token is an initial static token. Optional when Source is set.
	Token string

	// Source refreshes the token when the cached one is missing or
	// expired. Optional when Token is set and never expires.
	Source TokenSource

	// Leeway is subtracted from the exp claim, so a token about to
	// expire is refreshed before it actually does.
	// Default: 30 seconds
	Leeway time.Duration

	// Cache overrides the token cache. Mostly useful for sharing one
	// cache across providers or injecting a clock in tests.
	Cache *TokenCache

	// Clock overrides the time source when no Cache is supplied.
	Clock func() time.Time
}

// JWTProvider attaches a JWT bearer token, checking the exp claim
// before every attach and refreshing through the TokenSource when
// needed. Concurrent refreshes are collapsed into a single fetch.
type JWTProvider struct {
	cfg    JWTConfig
	cache  *TokenCache
	clock  func() time.Time
	group  singleflight.Group
	parser *jwt.Parser
}

// NewJWTProvider creates a JWT provider.
func NewJWTProvider(cfg JWTConfig) *JWTProvider {
	if cfg.Leeway <= 0 {
		cfg.Leeway = 30 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewTokenCache(clock)
	}

	p := &JWTProvider{
		cfg:   cfg,
		cache: cache,
		clock: clock,
		// The provider is a client: it reads the exp claim for the
		// refresh decision but does not verify the signature; the
		// server does that.
		parser: jwt.NewParser(),
	}

	if cfg.Token != "" {
		if exp, err := p.expiry(cfg.Token); err == nil {
			cache.Set(cfg.Token, exp)
		}
	}
	return p
}

// Name returns "jwt".
func (p *JWTProvider) Name() string { return "jwt" }

// Valid reports whether a usable token is cached or obtainable.
func (p *JWTProvider) Valid() bool {
	if _, ok := p.cache.Get(); ok {
		return true
	}
	return p.cfg.Source != nil
}

// Headers returns the Authorization header, refreshing the token first
// when the cached one is missing or expired.
func (p *JWTProvider) Headers(ctx context.Context) (http.Header, error) {
	token, ok := p.cache.Get()
	if !ok {
		refreshed, err := p.refresh(ctx)
		if err != nil {
			return nil, err
		}
		token = refreshed
	}

	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

// refresh fetches a token through the source, deduplicating concurrent
// callers so a burst of requests costs one fetch.
func (p *JWTProvider) refresh(ctx context.Context) (string, error) {
	v, err, _ := p.group.Do("token", func() (any, error) {
		// A concurrent refresh may have already filled the cache.
		if token, ok := p.cache.Get(); ok {
			return token, nil
		}
		if p.cfg.Source == nil {
			return nil, ErrNoTokenSource
		}

		token, err := p.cfg.Source.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}

		exp, err := p.expiry(token)
		if err != nil {
			return nil, err
		}
		if !exp.IsZero() && !p.clock().Before(exp) {
			return nil, ErrTokenExpired
		}

		p.cache.Set(token, exp)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// expiry reads the exp claim, shifted back by the leeway. A token with
// no exp claim returns the zero time.
func (p *JWTProvider) expiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := p.parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Add(-p.cfg.Leeway), nil
}
