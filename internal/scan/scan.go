// Package scan walks an asset bundle and extracts per-file metadata.
//
// The scanner is pure with respect to the rest of the system: it knows
// nothing about caching, persistence, or tier manifests. It produces the
// entries the index is built from and nothing else.
package scan

import (
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/aetheric/corpus/internal/corpustype"
)

// nameRE is the filename grammar: <category>_focus<N>_realm<N>.txt.
// Category is a lowercase slug; the axis values are validated separately
// against the allowed numerology set.
var nameRE = regexp.MustCompile(`^(?P<category>[a-z][a-z0-9-]*)_focus(?P<focus>[1-9][0-9]?)_realm(?P<realm>[1-9][0-9]?)\.txt$`)

// previewBytes is the maximum preview length captured per file.
const previewBytes = 64

// ParseName parses a bare file name against the content grammar.
//
// It returns false for names that do not match the grammar or whose axis
// values fall outside the allowed set.
func ParseName(name string) (corpustype.Key, bool) {
	m := nameRE.FindStringSubmatch(name)
	if m == nil {
		return corpustype.Key{}, false
	}
	focus, err := strconv.Atoi(m[nameRE.SubexpIndex("focus")])
	if err != nil || !corpustype.ValidAxis(focus) {
		return corpustype.Key{}, false
	}
	realm, err := strconv.Atoi(m[nameRE.SubexpIndex("realm")])
	if err != nil || !corpustype.ValidAxis(realm) {
		return corpustype.Key{}, false
	}
	return corpustype.Key{
		Category: m[nameRE.SubexpIndex("category")],
		Focus:    focus,
		Realm:    realm,
	}, true
}

// Scanner walks an asset root and produces index entries.
type Scanner struct {
	logger *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used to report skipped files.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Scan walks the asset root recursively and returns one entry per file
// matching the content grammar.
//
// Files that do not match the grammar are skipped and counted, never
// fatal. Scan fails only on unrecoverable I/O errors: a missing root,
// a permission failure, or a matching file that cannot be read.
func (s *Scanner) Scan(fsys fs.FS) ([]corpustype.Entry, error) {
	var entries []corpustype.Entry
	skipped := 0

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scan: walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}

		key, ok := ParseName(d.Name())
		if !ok {
			skipped++
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("scan: read %s: %w", path, err)
		}

		entries = append(entries, corpustype.Entry{
			Key:      key,
			Path:     path,
			Size:     int64(len(content)),
			Checksum: xxhash.Sum64(content),
			Preview:  preview(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		s.logger.Info("scan skipped files not matching content grammar",
			zap.Int("skipped", skipped),
			zap.Int("indexed", len(entries)))
	}
	return entries, nil
}

// preview returns the first previewBytes of content as valid UTF-8,
// trimmed to a rune boundary.
func preview(content []byte) string {
	if len(content) > previewBytes {
		content = content[:previewBytes]
	}
	for len(content) > 0 && !utf8.Valid(content) {
		content = content[:len(content)-1]
	}
	return strings.TrimRight(string(content), "\n")
}
