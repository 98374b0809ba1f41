// Package cache defines the content cache consulted by the store before
// cold reads from the asset bundle.
//
// The cache is a pure performance layer: an empty cache changes latency,
// never correctness. Keys are content keys, values are raw file contents.
package cache

import "github.com/aetheric/corpus/internal/corpustype"

// Cache stores file contents keyed by content key.
//
// Implementations own the bytes they hold: Put copies its input and Get
// returns content the caller may retain and modify freely. Implementations
// handle their own size limits and eviction, and must be safe for
// concurrent use.
type Cache interface {
	// Get retrieves cached content. Returns nil, false on a miss.
	Get(key corpustype.Key) ([]byte, bool)

	// Put stores content for the key, evicting older entries as needed.
	Put(key corpustype.Key, content []byte)
}

// Shrinker is implemented by caches that can reduce their footprint in
// response to memory pressure.
type Shrinker interface {
	// Shrink halves the cache's effective capacity and evicts down to it.
	Shrink()

	// Purge drops all cached content without changing capacity.
	Purge()
}

// Sizer is implemented by caches that report their current footprint.
type Sizer interface {
	// Len returns the number of cached entries.
	Len() int

	// Bytes returns the approximate total content size held.
	Bytes() int64
}
