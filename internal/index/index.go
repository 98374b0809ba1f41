// Package index implements the immutable bundle index.
//
// An Index maps three-axis content keys to file locations and metadata,
// with derived lookup maps for each axis. Indexes are built once from
// scanner output and never edited in place; the persisted form is a zstd
// frame over a CBOR document validated on decode.
package index

import (
	"slices"
	"strings"
	"time"

	"github.com/aetheric/corpus/internal/corpustype"
)

// SchemaVersion identifies the persisted index layout. A persisted index
// written with any other version is discarded and rebuilt, never migrated.
const SchemaVersion = 1

// Index provides lookups over the scanned asset bundle.
//
// Index is immutable after construction; concurrent reads need no
// synchronization.
type Index struct {
	schemaVersion  int
	builtAt        time.Time
	totalFiles     int
	totalSizeBytes int64
	entries        []corpustype.Entry

	byCategory map[string][]string
	byFocus    map[int][]string
	byRealm    map[int][]string
	byKey      map[corpustype.Key]corpustype.Entry
	byPath     map[string]corpustype.Entry
}

// Build aggregates scanner entries into an index.
//
// Build is pure: it sorts a copy of the entries by path and derives the
// per-axis lookup maps. Duplicate keys keep the lexically first path.
func Build(entries []corpustype.Entry) *Index {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b corpustype.Entry) int {
		return strings.Compare(a.Path, b.Path)
	})

	// Second precision: the timestamp is persisted as unix seconds.
	idx := &Index{
		schemaVersion: SchemaVersion,
		builtAt:       time.Now().UTC().Truncate(time.Second),
		totalFiles:    len(sorted),
		entries:       sorted,
		byCategory:    make(map[string][]string),
		byFocus:       make(map[int][]string),
		byRealm:       make(map[int][]string),
		byKey:         make(map[corpustype.Key]corpustype.Entry, len(sorted)),
		byPath:        make(map[string]corpustype.Entry, len(sorted)),
	}
	for _, e := range sorted {
		idx.totalSizeBytes += e.Size
		idx.byCategory[e.Key.Category] = append(idx.byCategory[e.Key.Category], e.Path)
		idx.byFocus[e.Key.Focus] = append(idx.byFocus[e.Key.Focus], e.Path)
		idx.byRealm[e.Key.Realm] = append(idx.byRealm[e.Key.Realm], e.Path)
		if _, exists := idx.byKey[e.Key]; !exists {
			idx.byKey[e.Key] = e
		}
		idx.byPath[e.Path] = e
	}
	return idx
}

// SchemaVersion returns the schema version the index was built with.
func (idx *Index) SchemaVersion() int { return idx.schemaVersion }

// BuiltAt returns the build timestamp.
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// Len returns the number of indexed files.
func (idx *Index) Len() int { return idx.totalFiles }

// TotalSizeBytes returns the combined size of all indexed files.
func (idx *Index) TotalSizeBytes() int64 { return idx.totalSizeBytes }

// Entries returns a copy of all entries, sorted by path.
func (idx *Index) Entries() []corpustype.Entry {
	return slices.Clone(idx.entries)
}

// Lookup returns the entry for an exact key match.
func (idx *Index) Lookup(key corpustype.Key) (corpustype.Entry, bool) {
	e, ok := idx.byKey[key]
	return e, ok
}

// Filter selects entries by optional axis values. Zero values match
// everything on that axis.
type Filter struct {
	Category string
	Focus    int
	Realm    int
}

// Query returns all entries matching the filter, computed by intersecting
// the derived per-axis maps. Results are sorted by path.
func (idx *Index) Query(f Filter) []corpustype.Entry {
	var sets [][]string
	if f.Category != "" {
		sets = append(sets, idx.byCategory[f.Category])
	}
	if f.Focus != 0 {
		sets = append(sets, idx.byFocus[f.Focus])
	}
	if f.Realm != 0 {
		sets = append(sets, idx.byRealm[f.Realm])
	}
	if len(sets) == 0 {
		return idx.Entries()
	}

	paths := sets[0]
	for _, next := range sets[1:] {
		paths = intersect(paths, next)
	}

	entries := make([]corpustype.Entry, 0, len(paths))
	for _, p := range paths {
		if e, ok := idx.byPath[p]; ok {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b corpustype.Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return entries
}

// intersect returns the paths present in both lists.
func intersect(a, b []string) []string {
	member := make(map[string]struct{}, len(b))
	for _, p := range b {
		member[p] = struct{}{}
	}
	out := make([]string, 0, min(len(a), len(b)))
	for _, p := range a {
		if _, ok := member[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
