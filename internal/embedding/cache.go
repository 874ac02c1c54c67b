package embedding

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache provides LRU caching with TTL for embedding vectors, keyed by
// model+text. Grounded in the donor's internal/embeddings/cache.go,
// adapted from []float64 to Vector ([]float32, matching spec §4.2's
// vector<float32, D>).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	lru     *list.List
	maxSize int
	ttl     time.Duration

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key       string
	value     Vector
	element   *list.Element
	createdAt time.Time
}

// NewCache creates an LRU cache bounded by maxSize entries, each expiring
// after ttl.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *Cache) key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "|" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached vector for (model, text), or false if absent/expired.
func (c *Cache) Get(model, text string) (Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(model, text)
	entry, ok := c.entries[k]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Since(entry.createdAt) > c.ttl {
		c.removeLocked(entry)
		c.misses++
		return nil, false
	}

	c.lru.MoveToFront(entry.element)
	c.hits++

	out := make(Vector, len(entry.value))
	copy(out, entry.value)
	return out, true
}

// Set stores a vector for (model, text), evicting the oldest entry if the
// cache is at capacity.
func (c *Cache) Set(model, text string, v Vector) {
	if len(v) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(model, text)
	stored := make(Vector, len(v))
	copy(stored, v)

	if entry, ok := c.entries[k]; ok {
		entry.value = stored
		entry.createdAt = time.Now()
		c.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{key: k, value: stored, createdAt: time.Now()}
	entry.element = c.lru.PushFront(entry)
	c.entries[k] = entry

	for c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*cacheEntry))
		c.evictions++
	}
}

func (c *Cache) removeLocked(entry *cacheEntry) {
	delete(c.entries, entry.key)
	c.lru.Remove(entry.element)
}

// Stats reports cache hit/miss/eviction counters.
type Stats struct {
	Size      int
	MaxSize   int
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Size:      c.lru.Len(),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
