package cache

import (
	"sync"
	"time"
)

type item struct {
	blob    []byte
	expires time.Time
}

func (it item) expired(now time.Time) bool {
	return !it.expires.IsZero() && now.After(it.expires)
}

// TTLCache is an in-process BytesCache. Expired entries are dropped lazily
// on read, so memory is bounded by the working key set rather than a
// background janitor.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]item
}

func NewTTLCache() *TTLCache {
	return &TTLCache{items: make(map[string]item)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if it.expired(time.Now()) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return it.blob, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item{blob: value, expires: expires}
	c.mu.Unlock()
	return nil
}
