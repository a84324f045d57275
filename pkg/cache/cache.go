// Package cache defines the response-cache contract used by the request
// executor, together with a memory-backed implementation.
//
// The executor consults a Policy value per call: Use gates the lookup that
// may short-circuit the request pipeline, Store gates the write performed
// after a successful response. The Store interface is intentionally narrow
// so that callers can plug a shared store (disk, redis, ...) behind it.
package cache

import "time"

// Policy carries the per-request cache directives. It is a pure value and
// does not own the store.
type Policy struct {
	// Use enables the cache lookup before the request is sent. A hit is
	// returned to the caller without contacting the transport.
	Use bool

	// Store enables writing the raw response bytes after a successful
	// request.
	Store bool

	// ExpireAt is the absolute expiry of an entry written under this
	// policy. The zero value means the store's default retention applies.
	ExpireAt time.Time
}

// ReadWrite returns a policy that both reads and writes entries expiring at
// the given time.
func ReadWrite(expireAt time.Time) Policy {
	return Policy{Use: true, Store: true, ExpireAt: expireAt}
}

// A Store holds raw response bytes keyed by request URL.
//
// Implementations must be safe for concurrent use and must never return an
// entry whose expiry is in the past: an expired entry discovered by Get is
// evicted and reported as a miss.
type Store interface {
	// Get returns the bytes stored under key and true on a live hit.
	Get(key string) ([]byte, bool)

	// Set stores b under key. A zero expireAt applies the store default.
	Set(key string, b []byte, expireAt time.Time)

	// Clear drops every entry.
	Clear()
}
