package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
)

// Keyer derives a cache key from request identity.
type Keyer interface {
	Key(method, url string, header http.Header) string
}

// RequestKeyer hashes the method, the absolute URL and the values of
// the configured vary headers. Header names are matched
// case-insensitively and folded into the digest in sorted order, so
// key derivation is order-independent.
type RequestKeyer struct {
	// Vary lists the request headers that participate in the key.
	// Typical values: Accept, Accept-Encoding, Authorization.
	Vary []string
}

// NewRequestKeyer creates a keyer varying on the given headers.
func NewRequestKeyer(vary ...string) *RequestKeyer {
	return &RequestKeyer{Vary: vary}
}

// Key returns "resp:<method>:<hex digest>".
func (k *RequestKeyer) Key(method, url string, header http.Header) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(url))

	names := make([]string, 0, len(k.Vary))
	for _, name := range k.Vary {
		names = append(names, http.CanonicalHeaderKey(name))
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range header.Values(name) {
			h.Write([]byte{0})
			h.Write([]byte(name))
			h.Write([]byte{':'})
			h.Write([]byte(v))
		}
	}

	return "resp:" + strings.ToUpper(method) + ":" + hex.EncodeToString(h.Sum(nil))
}
