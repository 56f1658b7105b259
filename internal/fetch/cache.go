package fetch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"beraflow/logger"
)

// FetchFunc produces the raw payload for a cache key.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Cache is a TTL cache keyed by endpoint identity. Concurrent callers for the
// same expired key share a single in-flight fetch; a failed fetch degrades to
// the last cached value regardless of age, or nil when none exists.
type Cache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]cacheEntry
	group singleflight.Group
	log   *logger.Log

	// now is swapped out by tests to control TTL expiry.
	now func() time.Time
}

type cacheEntry struct {
	data json.RawMessage
	at   time.Time
}

// NewCache builds a cache with the given time-to-live.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		items: make(map[string]cacheEntry),
		log:   logger.GetLogger(),
		now:   time.Now,
	}
}

// Get returns the cached payload for key when still fresh, otherwise fetches
// via fn and repopulates. Returns nil when the fetch fails and nothing was
// ever cached; a stale value is preferred over nil.
func (c *Cache) Get(ctx context.Context, key string, fn FetchFunc) json.RawMessage {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.at) < c.ttl {
		logger.IncrementCacheHit()
		return entry.data
	}

	logger.IncrementCacheMiss()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under singleflight: a concurrent caller may have just
		// repopulated this key.
		c.mu.RLock()
		e, ok := c.items[key]
		c.mu.RUnlock()
		if ok && c.now().Sub(e.at) < c.ttl {
			return e.data, nil
		}

		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.items[key] = cacheEntry{data: data, at: c.now()}
		c.mu.Unlock()
		return data, nil
	})

	if err != nil {
		c.log.WithComponent("cache").WithError(err).WithFields(logger.Fields{
			"key": key,
		}).Warn("fetch failed, falling back to cached value")
		if ok {
			return entry.data
		}
		return nil
	}

	data, _ := v.(json.RawMessage)
	return data
}

// Len reports the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
