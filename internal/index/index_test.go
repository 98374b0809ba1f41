package index

import (
	"bytes"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aetheric/corpus/internal/corpustype"
)

func testEntries() []corpustype.Entry {
	return []corpustype.Entry{
		{
			Key:      corpustype.Key{Category: "mentor", Focus: 1, Realm: 1},
			Path:     "mentor_focus1_realm1.txt",
			Size:     17,
			Checksum: 0xdeadbeef,
			Preview:  "trust the process",
		},
		{
			Key:      corpustype.Key{Category: "mentor", Focus: 1, Realm: 2},
			Path:     "mentor_focus1_realm2.txt",
			Size:     5,
			Checksum: 0xcafe,
			Preview:  "hello",
		},
		{
			Key:      corpustype.Key{Category: "seeker", Focus: 11, Realm: 2},
			Path:     "seeker_focus11_realm2.txt",
			Size:     9,
			Checksum: 0xbead,
			Preview:  "eleven",
		},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	idx := Build(testEntries())

	assert.Equal(t, SchemaVersion, idx.SchemaVersion())
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, int64(31), idx.TotalSizeBytes())
	assert.WithinDuration(t, time.Now(), idx.BuiltAt(), time.Minute)

	e, ok := idx.Lookup(corpustype.Key{Category: "seeker", Focus: 11, Realm: 2})
	require.True(t, ok)
	assert.Equal(t, "seeker_focus11_realm2.txt", e.Path)

	_, ok = idx.Lookup(corpustype.Key{Category: "seeker", Focus: 1, Realm: 2})
	assert.False(t, ok)
}

func TestQuery(t *testing.T) {
	t.Parallel()

	idx := Build(testEntries())

	all := idx.Query(Filter{})
	assert.Len(t, all, 3)

	mentor := idx.Query(Filter{Category: "mentor"})
	require.Len(t, mentor, 2)
	assert.Equal(t, "mentor_focus1_realm1.txt", mentor[0].Path)
	assert.Equal(t, "mentor_focus1_realm2.txt", mentor[1].Path)

	realm2 := idx.Query(Filter{Realm: 2})
	assert.Len(t, realm2, 2)

	both := idx.Query(Filter{Category: "mentor", Realm: 2})
	require.Len(t, both, 1)
	assert.Equal(t, "mentor_focus1_realm2.txt", both[0].Path)

	none := idx.Query(Filter{Category: "mentor", Focus: 11})
	assert.Empty(t, none)

	unknown := idx.Query(Filter{Category: "oracle"})
	assert.Empty(t, unknown)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	idx := Build(testEntries())

	var buf bytes.Buffer
	require.NoError(t, idx.Encode(&buf))

	decoded, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, idx.Len(), decoded.Len())
	assert.Equal(t, idx.TotalSizeBytes(), decoded.TotalSizeBytes())
	assert.True(t, idx.BuiltAt().Equal(decoded.BuiltAt()))
	assert.ElementsMatch(t, idx.Entries(), decoded.Entries())

	// Derived maps must survive the trip: same query results.
	assert.Equal(t, idx.Query(Filter{Category: "mentor"}), decoded.Query(Filter{Category: "mentor"}))
	assert.Equal(t, idx.Query(Filter{Focus: 11}), decoded.Query(Filter{Focus: 11}))
	assert.Equal(t, idx.Query(Filter{Realm: 2}), decoded.Query(Filter{Realm: 2}))
}

func TestDecodeSchemaMismatch(t *testing.T) {
	t.Parallel()

	data := encodeDocument(t, document{
		SchemaVersion: SchemaVersion + 1,
		BuiltAt:       time.Now().Unix(),
	})

	_, err := Decode(bytes.NewReader(data))
	require.ErrorIs(t, err, corpustype.ErrSchemaMismatch)
}

func TestDecodeGarbage(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader([]byte("this is not an index")))
	require.ErrorIs(t, err, corpustype.ErrIndexCorrupt)
}

func TestDecodeEmpty(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader(nil))
	require.ErrorIs(t, err, corpustype.ErrIndexCorrupt)
}

func TestDecodeInconsistentDerivedMap(t *testing.T) {
	t.Parallel()

	idx := Build(testEntries())
	doc := document{
		SchemaVersion:  SchemaVersion,
		BuiltAt:        idx.BuiltAt().Unix(),
		TotalFiles:     idx.Len(),
		TotalSizeBytes: idx.TotalSizeBytes(),
		ByCategory:     map[string][]string{"mentor": {"ghost_focus1_realm1.txt"}},
	}
	for _, e := range idx.Entries() {
		doc.Entries = append(doc.Entries, entryRecord{
			Category: e.Key.Category,
			Focus:    e.Key.Focus,
			Realm:    e.Key.Realm,
			Path:     e.Path,
			Size:     e.Size,
			Checksum: e.Checksum,
			Preview:  e.Preview,
		})
	}

	_, err := Decode(bytes.NewReader(encodeDocument(t, doc)))
	require.ErrorIs(t, err, corpustype.ErrIndexCorrupt)
}

func TestDecodeTotalFilesMismatch(t *testing.T) {
	t.Parallel()

	doc := document{
		SchemaVersion: SchemaVersion,
		BuiltAt:       time.Now().Unix(),
		TotalFiles:    7,
	}

	_, err := Decode(bytes.NewReader(encodeDocument(t, doc)))
	require.ErrorIs(t, err, corpustype.ErrIndexCorrupt)
}

// encodeDocument writes a raw document the way Encode does, letting tests
// forge invalid persisted indexes.
func encodeDocument(t *testing.T, doc document) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, cbor.NewEncoder(zw).Encode(doc))
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
