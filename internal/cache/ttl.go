// Package cache holds a small TTL cache in front of expensive loaders.
package cache

import (
	"context"
	"sync"
	"time"
)

// Loader fetches the value for a key on a cache miss.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// TTL caches loader results per key for a fixed duration. Errors are not cached.
type TTL[K comparable, V any] struct {
	load Loader[K, V]
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[K]entry[V]
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// New wraps load with a cache of the given ttl.
func New[K comparable, V any](load Loader[K, V], ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		load:    load,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the cached value for key, loading it when missing or expired.
func (c *TTL[K, V]) Get(ctx context.Context, key K) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expiresAt) {
		return e.value, nil
	}
	return c.Refresh(ctx, key)
}

// Refresh bypasses the cache and stores the fresh value.
func (c *TTL[K, V]) Refresh(ctx context.Context, key K) (V, error) {
	v, err := c.load(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: v, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops one key.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll clears every entry.
func (c *TTL[K, V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}
