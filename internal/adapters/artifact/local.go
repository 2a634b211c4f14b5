// Package artifact publishes finished mosaics to delivery backends.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore implements output.ArtifactStore on a local directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed and returns the store.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Upload implements output.ArtifactStore by copying the file.
func (s *LocalStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening artifact: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(s.dir, filepath.Base(key))
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("copying artifact: %w", err)
	}
	return destPath, nil
}

// Name implements output.ArtifactStore.
func (s *LocalStore) Name() string { return "local" }
