// Package cache provides a TTL response cache for the httpkit client.
//
// Only idempotent GET responses are cached; a hit short-circuits the
// client's attempt loop before the rate limiter, the circuit breaker
// and the transport. Keys are derived from the method, the absolute
// URL and any configured vary headers, so two tenants with different
// auth contexts never share an entry.
//
//	c := cache.NewMemoryCache(cache.DefaultPolicy())
//
// The cache stores opaque byte slices; the client owns the encoding of
// the response object.
package cache
