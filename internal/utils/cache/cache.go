package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL LRU 缓存，过期条目在读取时淘汰
type TTL[V any] struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	store *lru.Cache[string, entry[V]]
}

// New returns nil when size is not positive; a nil cache never hits.
func New[V any](size int, ttl time.Duration) *TTL[V] {
	if size <= 0 {
		return nil
	}
	store, err := lru.New[string, entry[V]](size)
	if err != nil {
		return nil
	}
	return &TTL[V]{ttl: ttl, now: time.Now, store: store}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || key == "" {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.store.Remove(key)
		return zero, false
	}
	return e.value, true
}

func (c *TTL[V]) Add(key string, value V) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.store.Add(key, entry[V]{value: value, storedAt: c.now()})
	c.mu.Unlock()
}

// Seen records key and reports whether it was already present.
func (c *TTL[V]) Seen(key string, value V) bool {
	if _, ok := c.Get(key); ok {
		return true
	}
	c.Add(key, value)
	return false
}

func (c *TTL[V]) Remove(key string) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.store.Remove(key)
	c.mu.Unlock()
}

func (c *TTL[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// PurgeExpired drops every entry older than the TTL.
func (c *TTL[V]) PurgeExpired() {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, key := range c.store.Keys() {
		e, ok := c.store.Peek(key)
		if ok && now.Sub(e.storedAt) > c.ttl {
			c.store.Remove(key)
		}
	}
}
