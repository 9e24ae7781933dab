// Package cache provides the run-scoped memo used by the registry-backed
// adapters.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// LoadFunc computes the value for a missing key.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// Stats reports cache activity for one run.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Loads  int64 `json:"loads"`
	Errors int64 `json:"errors"`
	Size   int   `json:"size"`
}

// RunCache memoizes one value per key for the lifetime of a run. Concurrent
// callers for the same key share a single load. Failed loads are not stored.
type RunCache[V any] struct {
	mu     sync.RWMutex
	values map[string]V
	group  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
	errors atomic.Int64
}

// NewRunCache creates an empty cache.
func NewRunCache[V any]() *RunCache[V] {
	return &RunCache[V]{values: make(map[string]V)}
}

// Get returns the cached value for key, loading it with load on a miss.
func (c *RunCache[V]) Get(ctx context.Context, key string, load LoadFunc[V]) (V, error) {
	if v, ok := c.Peek(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		// another caller may have stored it between Peek and Do
		if v, ok := c.Peek(key); ok {
			return v, nil
		}
		c.loads.Add(1)
		v, err := load(ctx, key)
		if err != nil {
			c.errors.Add(1)
			return v, err
		}
		c.mu.Lock()
		c.values[key] = v
		c.mu.Unlock()
		return v, nil
	})

	v, _ := res.(V)
	return v, err
}

// Peek returns the cached value without loading.
func (c *RunCache[V]) Peek(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of cached keys.
func (c *RunCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Stats returns the current counters.
func (c *RunCache[V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Loads:  c.loads.Load(),
		Errors: c.errors.Load(),
		Size:   c.Len(),
	}
}
