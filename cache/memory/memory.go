// Package memory provides a bounded in-memory LRU cache.
package memory

import (
	"container/list"
	"slices"
	"sync"

	"github.com/aetheric/corpus/cache"
	"github.com/aetheric/corpus/internal/corpustype"
)

// Interface compliance.
var (
	_ cache.Cache    = (*Cache)(nil)
	_ cache.Shrinker = (*Cache)(nil)
	_ cache.Sizer    = (*Cache)(nil)
)

const (
	defaultMaxEntries = 256
	defaultMaxBytes   = 8 << 20 // 8MB
)

// Cache is an LRU cache bounded by both an entry-count ceiling and an
// approximate total-byte ceiling; whichever is exceeded first triggers
// eviction of the least-recently-used entries.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	bytes      int64
	order      *list.List // front = most recently used
	items      map[corpustype.Key]*list.Element
}

type cacheEntry struct {
	key     corpustype.Key
	content []byte
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries sets the entry-count ceiling. Values < 1 keep the default.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n >= 1 {
			c.maxEntries = n
		}
	}
}

// WithMaxBytes sets the approximate total-byte ceiling.
// Values < 1 keep the default.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		if n >= 1 {
			c.maxBytes = n
		}
	}
}

// New creates a bounded LRU cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxEntries: defaultMaxEntries,
		maxBytes:   defaultMaxBytes,
		order:      list.New(),
		items:      make(map[corpustype.Key]*list.Element),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Get retrieves cached content, marking the entry as most recently used.
// The returned slice is a copy the caller may modify.
func (c *Cache) Get(key corpustype.Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return slices.Clone(el.Value.(*cacheEntry).content), true
}

// Put stores a copy of content for the key and evicts down to the ceilings.
func (c *Cache) Put(key corpustype.Key, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		c.bytes += int64(len(content)) - int64(len(entry.content))
		entry.content = slices.Clone(content)
		c.order.MoveToFront(el)
		c.evictLocked()
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, content: slices.Clone(content)})
	c.items[key] = el
	c.bytes += int64(len(content))
	c.evictLocked()
}

// Shrink halves both ceilings and evicts down to them. Repeated pressure
// signals keep halving; capacity never drops below one entry.
func (c *Cache) Shrink() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxEntries = max(c.maxEntries/2, 1)
	c.maxBytes = max(c.maxBytes/2, 1)
	c.evictLocked()
}

// Purge drops all cached content without changing the ceilings.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	clear(c.items)
	c.bytes = 0
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Bytes returns the approximate total content size held.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// evictLocked removes least-recently-used entries until both ceilings hold.
func (c *Cache) evictLocked() {
	for len(c.items) > 0 && (len(c.items) > c.maxEntries || c.bytes > c.maxBytes) {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*cacheEntry)
		c.order.Remove(oldest)
		delete(c.items, entry.key)
		c.bytes -= int64(len(entry.content))
	}
}
