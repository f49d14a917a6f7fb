package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local stores artifacts on the local filesystem.
type Local struct {
	dir string
}

// NewLocal creates a local provider rooted at dir.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Put writes the artifact and returns its path.
func (l *Local) Put(name string, data []byte, contentType string) (string, error) {
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}

// Get reads an artifact back by path.
func (l *Local) Get(path string) ([]byte, error) {
	// Refuse paths outside the storage root.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(l.dir)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("artifact path outside storage root: %s", path)
	}
	return os.ReadFile(abs)
}
