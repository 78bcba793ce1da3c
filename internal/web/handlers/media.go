package handlers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MediaStore saves uploaded photos under a single directory with
// uuid-derived names. Cases and alerts reference photos by the returned
// file name only.
type MediaStore struct {
	dir string
}

// NewMediaStore ensures the directory exists.
func NewMediaStore(dir string) (*MediaStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating media directory %s: %w", dir, err)
	}
	return &MediaStore{dir: dir}, nil
}

// SaveJPEG writes the photo bytes and returns the generated file name.
func (m *MediaStore) SaveJPEG(data []byte) (string, error) {
	name := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(m.dir, name), data, 0o640); err != nil {
		return "", fmt.Errorf("writing photo: %w", err)
	}
	return name, nil
}

// Path returns the absolute location of a stored photo.
func (m *MediaStore) Path(name string) string {
	return filepath.Join(m.dir, filepath.Base(name))
}
