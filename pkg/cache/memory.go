package cache

import (
	"time"

	"github.com/karlseguin/ccache/v2"
)

// MiB represents an integer value in Mega Bytes (1024*1024 bytes). It is
// used to bound the memory store size.
type MiB int64

func (m MiB) bytes() int64 { return int64(m * 1024 * 1024) }

// DefaultTTL is the retention applied to entries stored with a zero
// expiry.
var DefaultTTL = 1 * time.Hour

// sizedBytes is a slice alias providing the Size() method ccache uses to
// measure item weight. The constant accounts for ccache's per-entry
// bookkeeping overhead.
type sizedBytes []byte

func (s sizedBytes) Size() int64 { return int64(len(s)) + 350 }

// Memory is a Store bounded to a configured number of megabytes. Eviction
// of live entries is LRU and runs in the background; expired entries are
// dropped lazily by the Get that finds them.
type Memory struct {
	cache *ccache.Cache
}

var _ Store = (*Memory)(nil)

// NewMemory builds a memory store that optimistically keeps its total
// consumption below maxSize megabytes.
//
// A short-lived store should be released with Close to stop the background
// GC goroutines.
func NewMemory(maxSize MiB) *Memory {
	prune := uint32(maxSize) / 10
	if prune == 0 {
		prune = 1
	}

	cfg := ccache.Configure().
		MaxSize(maxSize.bytes()).
		ItemsToPrune(prune)

	return &Memory{cache: ccache.New(cfg)}
}

// Get returns the bytes under key. An entry past its expiry is evicted and
// reported as a miss.
func (m *Memory) Get(key string) ([]byte, bool) {
	item := m.cache.Get(key)
	if item == nil {
		return nil, false
	}

	if item.Expired() {
		m.cache.Delete(key)
		return nil, false
	}

	b, ok := item.Value().(sizedBytes)
	return b, ok
}

// Set stores b under key until expireAt. A zero expireAt applies
// DefaultTTL.
func (m *Memory) Set(key string, b []byte, expireAt time.Time) {
	ttl := DefaultTTL
	if !expireAt.IsZero() {
		ttl = time.Until(expireAt)
	}
	m.cache.Set(key, sizedBytes(b), ttl)
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.cache.Clear()
}

// Close stops the store's background goroutines. The store must not be
// used afterwards.
func (m *Memory) Close() error {
	m.cache.Stop()
	return nil
}
