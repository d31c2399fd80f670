package filmstrip

import (
	"container/list"
	"sync"
	"time"
)

// stripCache is a bounded LRU of composited strips keyed by the full
// request config tuple. Entries are immutable once written; an update is a
// delete and reinsert under the same key.
type stripCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

type stripEntry struct {
	key  string
	data []byte
}

func newStripCache(max int) *stripCache {
	if max <= 0 {
		max = 100
	}
	return &stripCache{
		max:     max,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *stripCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*stripEntry).data, true
}

func (c *stripCache) put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	c.entries[key] = c.order.PushFront(&stripEntry{key: key, data: data})
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*stripEntry).key)
	}
}

// failureCache remembers extraction failures with a cooldown so known-bad
// sources are not retried on every request, but are retried after the TTL
// in case the underlying cause has changed.
type failureCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]failure
}

type failure struct {
	err error
	at  time.Time
}

func newFailureCache(ttl time.Duration) *failureCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &failureCache{ttl: ttl, entries: make(map[string]failure)}
}

// active returns the cached failure if it is still within its cooldown.
func (c *failureCache) active(key string) (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(f.at) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return f.err, true
}

func (c *failureCache) put(key string, err error) {
	c.mu.Lock()
	c.entries[key] = failure{err: err, at: time.Now()}
	c.mu.Unlock()
}
