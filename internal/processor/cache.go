package processor

import "sync"

// resultCache keeps the most recent optimization results in memory so a
// retried upload with unchanged options skips the transcode entirely. Entries
// are evicted in insertion order once the capacity is reached; lookups do not
// refresh an entry. Process runs on the pipeline goroutine while Forget is
// called from API callers, so access is serialized here.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string][]byte
}

func newResultCache(capacity int) *resultCache {
	if capacity < 1 {
		capacity = 1
	}
	return &resultCache{
		capacity: capacity,
		entries:  make(map[string][]byte, capacity),
	}
}

func (c *resultCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	return payload, ok
}

func (c *resultCache) Add(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = payload
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.order = append(c.order, key)
	c.entries[key] = payload
}

func (c *resultCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, existing := range c.order {
		if existing == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
