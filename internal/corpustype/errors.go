package corpustype

import "errors"

// Sentinel errors shared across packages.
var (
	// ErrNotFound is returned when no index entry matches a key.
	ErrNotFound = errors.New("corpus: content not found")

	// ErrUnreadable is returned when the index references a file that is
	// missing, unreadable, or fails checksum verification on disk. It is
	// distinct from ErrNotFound because it indicates asset/index drift.
	ErrUnreadable = errors.New("corpus: content unreadable")

	// ErrIndexCorrupt is returned when a persisted index fails decoding
	// or internal consistency validation.
	ErrIndexCorrupt = errors.New("corpus: index corrupt")

	// ErrSchemaMismatch is returned when a persisted index was written
	// with a different schema version.
	ErrSchemaMismatch = errors.New("corpus: index schema mismatch")
)
