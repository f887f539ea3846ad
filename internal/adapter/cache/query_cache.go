package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// VectorCache is an LRU cache of query embeddings with a TTL. Keys include
// the snapshot and model, so a new snapshot never serves stale vectors.
type VectorCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	key       string
	vector    []float32
	timestamp time.Time
}

func NewVectorCache(maxSize int, ttl time.Duration) *VectorCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &VectorCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(snapshotID, model, query string) string {
	h := sha256.New()
	for _, part := range []string{snapshotID, model, query} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Get returns a copy of the cached vector.
func (c *VectorCache) Get(snapshotID, model, query string) ([]float32, bool) {
	key := cacheKey(snapshotID, model, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().Sub(entry.timestamp) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return append([]float32(nil), entry.vector...), true
}

func (c *VectorCache) Put(snapshotID, model, query string, vector []float32) {
	key := cacheKey(snapshotID, model, query)
	entry := &cacheEntry{key: key, vector: append([]float32(nil), vector...), timestamp: c.now()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	c.entries[key] = c.order.PushFront(entry)
}

// Invalidate drops every entry.
func (c *VectorCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *VectorCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
