// Package corpus indexes a read-only bundle of guidance content files and
// serves them through a bounded in-memory cache with tiered prefetching.
//
// Content files are addressed by a three-axis key (category, focus, realm)
// encoded in the file name. A persisted index makes process start a single
// file read instead of a directory walk, and the Orchestrator warms the
// cache under a hard wall-clock budget, cancelling in-flight work when the
// budget expires.
package corpus

import "github.com/aetheric/corpus/internal/corpustype"

// Re-export types from internal/corpustype for public API.
type (
	// Key identifies one content file by its three axes.
	Key = corpustype.Key

	// Entry records the indexed metadata for one content file.
	Entry = corpustype.Entry
)

// Sentinel errors re-exported from internal/corpustype.
var (
	// ErrNotFound is returned when no index entry matches a key.
	ErrNotFound = corpustype.ErrNotFound

	// ErrUnreadable is returned when the index references a file that is
	// missing, unreadable, or fails checksum verification on disk.
	ErrUnreadable = corpustype.ErrUnreadable

	// ErrIndexCorrupt is returned when a persisted index fails decoding
	// or consistency validation.
	ErrIndexCorrupt = corpustype.ErrIndexCorrupt

	// ErrSchemaMismatch is returned when a persisted index was written
	// with a different schema version.
	ErrSchemaMismatch = corpustype.ErrSchemaMismatch
)

// PressureLevel is the severity of a host-delivered memory-pressure signal.
type PressureLevel uint8

const (
	// PressureWarning halves the cache's effective capacity.
	PressureWarning PressureLevel = iota + 1

	// PressureCritical drops all cached content.
	PressureCritical
)

func (l PressureLevel) String() string {
	switch l {
	case PressureWarning:
		return "warning"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}
