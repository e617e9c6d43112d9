// Package pool provides bounded reuse of transport connections for the
// httpkit client.
//
// Entries are keyed by (host, port, credential identity) and follow a
// borrow-then-validate-then-use discipline: a handle is validated when
// it is borrowed and again when it is released, and an unusable handle
// is discarded instead of being returned. A background sweep evicts
// entries that sat idle too long or outlived their max age.
//
// The pool serializes access per handle: an entry is borrowed by at
// most one caller at a time. Handles that support multiplexed use
// should be pooled once and shared above this package instead.
//
//	p := pool.New(pool.Config{Dial: dialTLS})
//	defer p.Close()
//
//	err := p.WithConn(ctx, key, func(conn pool.Conn) error {
//	    return send(conn, payload)
//	})
package pool
