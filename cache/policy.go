package cache

import (
	"net/http"
	"time"
)

// Policy decides whether and for how long a response is cached.
type Policy struct {
	// DefaultTTL applies to cacheable statuses without an override.
	// Default: 60 seconds
	DefaultTTL time.Duration

	// StatusTTL overrides the TTL per status code. A zero or negative
	// value disables caching for that status.
	StatusTTL map[int]time.Duration

	// Methods lists the cacheable request methods.
	// Default: GET
	Methods []string
}

// DefaultPolicy caches successful GET responses for one minute and
// permanent redirects for an hour.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: time.Minute,
		StatusTTL: map[int]time.Duration{
			http.StatusOK:               time.Minute,
			http.StatusMovedPermanently: time.Hour,
		},
		Methods: []string{http.MethodGet},
	}
}

// TTL returns the cache lifetime for a response, or 0 when the
// response must not be cached.
func (p Policy) TTL(method string, status int) time.Duration {
	methods := p.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	allowed := false
	for _, m := range methods {
		if m == method {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0
	}

	if ttl, ok := p.StatusTTL[status]; ok {
		if ttl <= 0 {
			return 0
		}
		return ttl
	}
	if status == http.StatusOK {
		if p.DefaultTTL > 0 {
			return p.DefaultTTL
		}
		return time.Minute
	}
	return 0
}
