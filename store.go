package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aetheric/corpus/cache"
	"github.com/aetheric/corpus/cache/memory"
	"github.com/aetheric/corpus/internal/index"
	"github.com/aetheric/corpus/internal/scan"
)

// Store serves content from a read-only asset bundle through a bounded
// in-memory cache.
//
// Store lazily builds its index on first use: a valid persisted index is
// loaded in a single read, otherwise the asset bundle is scanned, indexed,
// and the result saved for the next start. Concurrent Get calls for the
// same uncached key are deduplicated with singleflight, so a cache-miss
// storm performs one disk read.
type Store struct {
	assets  fs.FS
	storage IndexStorage
	cache   cache.Cache
	scanner *scan.Scanner
	logger  *zap.Logger
	metrics *storeMetrics

	mu     sync.Mutex // serializes index build
	idx    atomic.Pointer[index.Index]
	flight singleflight.Group
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCache sets the content cache. Defaults to a bounded in-memory LRU.
func WithCache(c cache.Cache) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store over the given asset bundle and index storage.
func NewStore(assets fs.FS, storage IndexStorage, opts ...StoreOption) *Store {
	s := &Store{
		assets:  assets,
		storage: storage,
		cache:   memory.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	s.scanner = scan.New(scan.WithLogger(s.logger))
	return s
}

// EnsureIndex makes the index available, building it if necessary.
//
// The fast path deserializes the persisted index in a single read with no
// directory walk. On any load failure (missing file, schema mismatch,
// decode error) the asset bundle is rescanned and the fresh index saved;
// a failed save is logged and ignored, since index availability must never
// depend on write success. EnsureIndex is idempotent and safe for
// concurrent use.
func (s *Store) EnsureIndex(ctx context.Context) error {
	if s.idx.Load() != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx.Load() != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if data, err := s.storage.Load(); err == nil {
		idx, derr := index.Decode(bytes.NewReader(data))
		if derr == nil {
			s.idx.Store(idx)
			s.logger.Debug("index loaded from storage",
				zap.Int("files", idx.Len()),
				zap.Int64("bytes", idx.TotalSizeBytes()))
			return nil
		}
		s.logger.Warn("persisted index rejected, rebuilding", zap.Error(derr))
	} else {
		s.logger.Debug("no persisted index, building", zap.Error(err))
	}

	entries, err := s.scanner.Scan(s.assets)
	if err != nil {
		return fmt.Errorf("corpus: build index: %w", err)
	}
	idx := index.Build(entries)

	var buf bytes.Buffer
	if err := idx.Encode(&buf); err != nil {
		s.logger.Warn("index encode failed, continuing unpersisted", zap.Error(err))
	} else if err := s.storage.Save(buf.Bytes()); err != nil {
		s.logger.Warn("index save failed, continuing unpersisted", zap.Error(err))
	}

	s.idx.Store(idx)
	s.logger.Info("index built",
		zap.Int("files", idx.Len()),
		zap.Int64("bytes", idx.TotalSizeBytes()))
	return nil
}

// Get returns the content for the key.
//
// A cache hit returns immediately. A miss resolves the key through the
// index, reads the file from the asset bundle, verifies its checksum,
// caches it, and returns the bytes. The returned slice is the caller's to
// keep; it never aliases cache-owned memory.
//
// Get returns ErrNotFound when no index entry matches the key, and
// ErrUnreadable when an entry exists but the underlying file is missing,
// unreadable, or fails checksum verification (asset/index drift).
func (s *Store) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	if content, ok := s.cache.Get(key); ok {
		s.metrics.hit()
		return content, nil
	}

	// The caller's context is checked here, per caller, never inside the
	// flight: a caller cancelled at budget cutover must not start a new
	// read, and must not poison the shared result for concurrent callers
	// whose contexts are live.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// All concurrent callers requesting the same uncached key share one
	// disk read. The flight observes no context, so it only ever fails
	// with ErrNotFound or ErrUnreadable.
	result, err, _ := s.flight.Do(key.String(), func() (any, error) {
		// Double-check: another goroutine may have cached this key
		// between our cache check and acquiring the flight.
		if content, ok := s.cache.Get(key); ok {
			return flightResult{content: content, cached: true}, nil
		}
		content, err := s.readCold(key)
		if err != nil {
			return flightResult{}, err
		}
		return flightResult{content: content}, nil
	})
	if err != nil {
		s.metrics.miss()
		return nil, err
	}

	res, _ := result.(flightResult)
	if res.cached {
		s.metrics.hit()
	} else {
		s.metrics.miss()
	}
	return slices.Clone(res.content), nil
}

// flightResult carries a flight's outcome so callers can attribute it to
// the cache or to a cold read.
type flightResult struct {
	content []byte
	cached  bool
}

// readCold resolves key through the index and reads from the asset bundle.
func (s *Store) readCold(key Key) ([]byte, error) {
	idx := s.idx.Load()
	entry, ok := idx.Lookup(key)
	if !ok {
		s.metrics.notFound()
		return nil, fmt.Errorf("corpus: %s: %w", key, ErrNotFound)
	}

	content, err := fs.ReadFile(s.assets, entry.Path)
	if err != nil {
		s.metrics.drift()
		s.logger.Warn("indexed file unreadable",
			zap.String("key", key.String()),
			zap.String("path", entry.Path),
			zap.Error(err))
		return nil, fmt.Errorf("corpus: %s: %w: %v", key, ErrUnreadable, err)
	}
	if sum := xxhash.Sum64(content); sum != entry.Checksum {
		s.metrics.drift()
		s.logger.Warn("indexed file failed checksum verification",
			zap.String("key", key.String()),
			zap.String("path", entry.Path),
			zap.Uint64("want", entry.Checksum),
			zap.Uint64("got", sum))
		return nil, fmt.Errorf("corpus: %s: %w: checksum mismatch", key, ErrUnreadable)
	}

	s.metrics.coldRead()
	s.cache.Put(key, content)
	return content, nil
}

// Preload warms the cache with the given keys, best effort.
//
// Individual failures are swallowed: preloading is an optimization, not a
// correctness mechanism. Preload stops early when ctx is cancelled.
func (s *Store) Preload(ctx context.Context, keys []Key) {
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Get(ctx, key); err != nil {
			s.logger.Debug("preload skipped key", zap.String("key", key.String()), zap.Error(err))
		}
	}
}

// Filter selects entries by optional axis values for Query.
// Zero values match everything on that axis.
type Filter = index.Filter

// Query returns all index entries matching the filter, by intersecting
// the index's derived per-axis maps. It returns nil before the index has
// been built.
func (s *Store) Query(f Filter) []Entry {
	idx := s.idx.Load()
	if idx == nil {
		return nil
	}
	return idx.Query(f)
}

// OnMemoryPressure shrinks the cache in response to a host memory-pressure
// signal. Warning halves the cache's capacity, critical drops everything.
// The index is never touched.
func (s *Store) OnMemoryPressure(level PressureLevel) {
	shr, ok := s.cache.(cache.Shrinker)
	if !ok {
		return
	}
	switch level {
	case PressureWarning:
		shr.Shrink()
	case PressureCritical:
		shr.Purge()
	default:
		return
	}
	s.logger.Info("cache shrunk on memory pressure", zap.Stringer("level", level))
}

// Stats is a point-in-time diagnostic snapshot of the store.
type Stats struct {
	IndexFiles     int
	IndexSizeBytes int64
	CacheEntries   int
	CacheBytes     int64
}

// Stats returns a diagnostic snapshot. Cache figures are zero when the
// configured cache does not report its size.
func (s *Store) Stats() Stats {
	var st Stats
	if idx := s.idx.Load(); idx != nil {
		st.IndexFiles = idx.Len()
		st.IndexSizeBytes = idx.TotalSizeBytes()
	}
	if sz, ok := s.cache.(cache.Sizer); ok {
		st.CacheEntries = sz.Len()
		st.CacheBytes = sz.Bytes()
	}
	return st
}
