package corpus

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// IndexStorage persists the serialized bundle index.
//
// The store treats every Load failure as "no usable persisted index" and
// rebuilds from the asset bundle, so implementations may simply surface
// I/O errors as-is.
type IndexStorage interface {
	// Load returns the previously saved index document.
	Load() ([]byte, error)

	// Save replaces the persisted index document.
	Save(data []byte) error
}

// FileStorage stores the index as a single file, replaced atomically on
// save so a crash mid-write never leaves a corrupt index behind.
type FileStorage struct {
	path string
}

// Interface compliance.
var _ IndexStorage = (*FileStorage)(nil)

// NewFileStorage creates storage backed by the file at path. Parent
// directories are created on first save.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the persisted index file.
func (s *FileStorage) Load() ([]byte, error) {
	return os.ReadFile(s.path)
}

// Save writes the index via a temp file and rename.
func (s *FileStorage) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}
