// Package corpustype defines the value types and sentinel errors shared by
// the scanner, the index, and the store.
//
// The types here are plain values with no behavior beyond formatting; the
// root corpus package re-exports them for public use.
package corpustype

import "fmt"

// Key identifies one content file by its three axes.
//
// Category is a persona-like slug ("mentor", "seeker"). Focus and Realm are
// numerology axes: 1 through 9 plus the master numbers 11, 22, 33, and 44.
type Key struct {
	Category string
	Focus    int
	Realm    int
}

// String renders the key in the canonical filename stem form,
// e.g. "mentor_focus3_realm7".
func (k Key) String() string {
	return fmt.Sprintf("%s_focus%d_realm%d", k.Category, k.Focus, k.Realm)
}

// FileName returns the asset file name addressed by the key.
func (k Key) FileName() string {
	return k.String() + ".txt"
}

// ValidAxis reports whether n is an allowed focus or realm value.
func ValidAxis(n int) bool {
	if n >= 1 && n <= 9 {
		return true
	}
	switch n {
	case 11, 22, 33, 44:
		return true
	}
	return false
}

// Entry records the indexed metadata for one content file.
//
// Entries are produced once by the scanner and never mutated afterward.
type Entry struct {
	// Key is the three-axis identifier parsed from the file name.
	Key Key

	// Path is the file path relative to the asset root.
	Path string

	// Size is the file size in bytes.
	Size int64

	// Checksum is the xxhash64 fingerprint of the file content.
	// xxhash64 is stable across processes, architectures, and library
	// versions, so persisted indexes remain portable across builds.
	Checksum uint64

	// Preview holds the first bytes of the content decoded as text,
	// for diagnostics only.
	Preview string
}
