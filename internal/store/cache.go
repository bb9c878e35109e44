package store

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lox/energydash/internal/metrics"
)

// Cache memoizes loaded tables by source identity for the life of the
// process. Entries are immutable once stored and only leave the cache
// through Invalidate or InvalidateAll. Errors are never cached.
//
// A load that is in flight when its key is invalidated still returns its
// value to the waiting callers, but the value is not stored.
type Cache[V any] struct {
	name    string
	mu      sync.RWMutex
	entries map[string]V
	group   singleflight.Group

	// epoch counts InvalidateAll calls, gens counts Invalidate calls per key.
	epoch uint64
	gens  map[string]uint64
}

func NewCache[V any](name string) *Cache[V] {
	return &Cache[V]{
		name:    name,
		entries: make(map[string]V),
		gens:    make(map[string]uint64),
	}
}

type generation struct{ epoch, key uint64 }

// generation must be called with mu held.
func (c *Cache[V]) generation(key string) generation {
	return generation{epoch: c.epoch, key: c.gens[key]}
}

// Get returns the cached value for key, calling load on a miss. Concurrent
// misses for one key share a single load.
func (c *Cache[V]) Get(key string, load func() (V, error)) (V, error) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}
	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()

	res, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		v, ok := c.entries[key]
		gen := c.generation(key)
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		v, err := load()
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.generation(key) == gen {
			c.entries[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.gens[key]++
	c.group.Forget(key)
	return ok
}

func (c *Cache[V]) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	for key := range c.entries {
		c.group.Forget(key)
	}
	c.entries = make(map[string]V)
	c.epoch++
	return n
}

func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
