// Package blobstore provides BlobStore adapters: a directory-backed store for
// real sync (point it at a Dropbox/Syncthing/NFS folder) and an in-memory
// store for tests.
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/sous/internal/ports"
)

// DirStore stores blobs as files under a root directory.
type DirStore struct {
	root string
}

var _ ports.BlobStore = (*DirStore)(nil)

// NewDirStore creates a DirStore rooted at dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &DirStore{root: dir}, nil
}

// Root returns the directory blobs are stored under.
func (s *DirStore) Root() string {
	return s.root
}

// Get returns the blob stored under key.
func (s *DirStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

// Put stores data under key via a temp file and rename so concurrent readers
// never observe a partial blob.
func (s *DirStore) Put(_ context.Context, key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp blob: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set blob permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace blob %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob stored under key. Missing blobs are not an error.
func (s *DirStore) Delete(_ context.Context, key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (s *DirStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob %s: %w", key, err)
	}
	return true, nil
}

// keyPath maps a key to a file path under the root, rejecting keys that
// would escape it.
func (s *DirStore) keyPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if strings.Contains(key, "/") || strings.Contains(key, string(filepath.Separator)) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}
	return filepath.Join(s.root, key), nil
}
