// Package blob provides durable storage for scan images, keyed by a
// deterministic file name and addressed back by URL.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxBlobSize        = 20 * 1024 * 1024 // 20MB
	defaultPermissions = 0o755
)

// Store persists named binary blobs and returns the URL they are served
// under. Implementations must make the blob durable before returning.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (url string, err error)
}

// FileConfig holds the configuration for the file-backed blob store.
type FileConfig struct {
	Logger *slog.Logger
	// BasePath is the directory blobs are written to.
	BasePath string
	// BaseURL is the public prefix blobs are served under.
	BaseURL string
}

// FileStore is a local-filesystem Store. Blobs live flat under BasePath
// and are served by the hub's file handler under BaseURL.
type FileStore struct {
	logger   *slog.Logger
	basePath string
	baseURL  string
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(cfg *FileConfig) (*FileStore, error) {
	if cfg == nil {
		return nil, errors.New("file store config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BasePath == "" {
		return nil, errors.New("base path cannot be empty")
	}

	if err := os.MkdirAll(cfg.BasePath, defaultPermissions); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	return &FileStore{
		logger:   cfg.Logger,
		basePath: cfg.BasePath,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// Save implements Store. The name must be a bare file name; anything that
// could escape the base directory is rejected.
func (s *FileStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	if len(data) == 0 {
		return "", errors.New("blob data cannot be empty")
	}
	if len(data) > maxBlobSize {
		return "", fmt.Errorf("blob exceeds maximum size of %d bytes", maxBlobSize)
	}

	path := filepath.Join(s.basePath, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", name, err)
	}

	s.logger.Debug("blob stored", "name", name, "size", len(data))
	return s.baseURL + "/" + name, nil
}

// BasePath returns the directory blobs are written to, for the hub's
// file-serving handler.
func (s *FileStore) BasePath() string {
	return s.basePath
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
