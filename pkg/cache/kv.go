// Package cache provides the two process-wide caches shared across guilds:
// a TTL key-value cache for provider lookups and a content-addressed on-disk
// cache for resolved stream data.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type kvEntry[V any] struct {
	value    V
	deadline time.Time
}

// KV is a size-bounded key-value cache with per-entry TTL. Entries expire
// lazily on read; there is no proactive sweep. Writes are last-writer-wins.
type KV[V any] struct {
	entries    *lru.Cache[string, kvEntry[V]]
	defaultTTL time.Duration
	now        func() time.Time
}

// NewKV creates a lookup cache holding at most size entries.
func NewKV[V any](size int, defaultTTL time.Duration) (*KV[V], error) {
	entries, err := lru.New[string, kvEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &KV[V]{
		entries:    entries,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// Get returns the cached value for key, or a miss if absent or expired.
func (c *KV[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(e.deadline) {
		c.entries.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with the default TTL.
func (c *KV[V]) Put(key string, value V) {
	c.PutTTL(key, value, c.defaultTTL)
}

// PutTTL stores value under key, expiring after ttl.
func (c *KV[V]) PutTTL(key string, value V, ttl time.Duration) {
	c.entries.Add(key, kvEntry[V]{value: value, deadline: c.now().Add(ttl)})
}

// Len returns the number of entries, counting ones not yet lazily expired.
func (c *KV[V]) Len() int {
	return c.entries.Len()
}
