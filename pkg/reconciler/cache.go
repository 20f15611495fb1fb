package reconciler

import "sync"

// Cache is the ephemeral client-side store keyed by task id. Entries have no
// expiry of their own; the Reconciler discards stale or corrupt ones itself.
type Cache interface {
	Get(taskID string) ([]byte, bool)
	Set(taskID string, value []byte)
	Delete(taskID string)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string][]byte)}
}

func (c *MemoryCache) Get(taskID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[taskID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

func (c *MemoryCache) Set(taskID string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	c.m[taskID] = v
}

func (c *MemoryCache) Delete(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, taskID)
}
