package index

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/aetheric/corpus/internal/corpustype"
)

// document is the persisted index layout: header fields, the full entry
// list, and the derived per-axis maps. BuiltAt is persisted as unix
// seconds.
type document struct {
	SchemaVersion  int                 `cbor:"schema_version"`
	BuiltAt        int64               `cbor:"built_at"`
	TotalFiles     int                 `cbor:"total_files"`
	TotalSizeBytes int64               `cbor:"total_size_bytes"`
	Entries        []entryRecord       `cbor:"entries"`
	ByCategory     map[string][]string `cbor:"by_category"`
	ByFocus        map[int][]string    `cbor:"by_focus"`
	ByRealm        map[int][]string    `cbor:"by_realm"`
}

type entryRecord struct {
	Category string `cbor:"category"`
	Focus    int    `cbor:"focus"`
	Realm    int    `cbor:"realm"`
	Path     string `cbor:"path"`
	Size     int64  `cbor:"size"`
	Checksum uint64 `cbor:"checksum"`
	Preview  string `cbor:"preview"`
}

// Encode writes the index as a zstd-compressed CBOR document.
func (idx *Index) Encode(w io.Writer) error {
	records := make([]entryRecord, len(idx.entries))
	for i, e := range idx.entries {
		records[i] = entryRecord{
			Category: e.Key.Category,
			Focus:    e.Key.Focus,
			Realm:    e.Key.Realm,
			Path:     e.Path,
			Size:     e.Size,
			Checksum: e.Checksum,
			Preview:  e.Preview,
		}
	}
	doc := document{
		SchemaVersion:  idx.schemaVersion,
		BuiltAt:        idx.builtAt.Unix(),
		TotalFiles:     idx.totalFiles,
		TotalSizeBytes: idx.totalSizeBytes,
		Entries:        records,
		ByCategory:     idx.byCategory,
		ByFocus:        idx.byFocus,
		ByRealm:        idx.byRealm,
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("index: encode: %w", err)
	}
	if err := cbor.NewEncoder(zw).Encode(doc); err != nil {
		zw.Close()
		return fmt.Errorf("index: encode: %w", err)
	}
	return zw.Close()
}

// Decode reads a persisted index, validating the schema version and the
// internal consistency of the derived maps.
//
// A schema mismatch returns ErrSchemaMismatch; any decode failure or
// consistency violation returns ErrIndexCorrupt. Both are recoverable by
// rebuilding from the asset bundle.
func Decode(r io.Reader) (*Index, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corpustype.ErrIndexCorrupt, err)
	}
	defer zr.Close()

	var doc document
	if err := cbor.NewDecoder(zr).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", corpustype.ErrIndexCorrupt, err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: got version %d, want %d",
			corpustype.ErrSchemaMismatch, doc.SchemaVersion, SchemaVersion)
	}

	entries := make([]corpustype.Entry, len(doc.Entries))
	for i, rec := range doc.Entries {
		entries[i] = corpustype.Entry{
			Key: corpustype.Key{
				Category: rec.Category,
				Focus:    rec.Focus,
				Realm:    rec.Realm,
			},
			Path:     rec.Path,
			Size:     rec.Size,
			Checksum: rec.Checksum,
			Preview:  rec.Preview,
		}
	}

	// Rebuild lookup maps from the entry list rather than trusting the
	// persisted copies, then verify the persisted derived maps agree.
	idx := Build(entries)
	idx.schemaVersion = doc.SchemaVersion
	idx.builtAt = time.Unix(doc.BuiltAt, 0).UTC()

	if doc.TotalFiles != len(entries) {
		return nil, fmt.Errorf("%w: total_files %d does not match %d entries",
			corpustype.ErrIndexCorrupt, doc.TotalFiles, len(entries))
	}
	if err := validateDerived(idx, doc); err != nil {
		return nil, err
	}
	return idx, nil
}

// validateDerived checks that every path in the persisted derived maps
// resolves to exactly one entry.
func validateDerived(idx *Index, doc document) error {
	seen := make(map[string]int, len(idx.entries))
	for _, e := range idx.entries {
		seen[e.Path]++
	}
	for path, n := range seen {
		if n != 1 {
			return fmt.Errorf("%w: duplicate entry path %s", corpustype.ErrIndexCorrupt, path)
		}
	}
	check := func(paths []string) error {
		for _, p := range paths {
			if seen[p] != 1 {
				return fmt.Errorf("%w: derived map references unknown path %s",
					corpustype.ErrIndexCorrupt, p)
			}
		}
		return nil
	}
	for _, paths := range doc.ByCategory {
		if err := check(paths); err != nil {
			return err
		}
	}
	for _, paths := range doc.ByFocus {
		if err := check(paths); err != nil {
			return err
		}
	}
	for _, paths := range doc.ByRealm {
		if err := check(paths); err != nil {
			return err
		}
	}
	return nil
}
