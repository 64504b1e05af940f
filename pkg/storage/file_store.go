package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileStore implements ObjectStore on local disk, for development and tests.
// Objects are served by the web server under urlPrefix.
type FileStore struct {
	basePath  string
	urlPrefix string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath, urlPrefix string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/media/"
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &FileStore{basePath: basePath, urlPrefix: urlPrefix}, nil
}

// BasePath returns the directory objects are written under.
func (f *FileStore) BasePath() string {
	return f.basePath
}

// Put writes an object under the base directory.
func (f *FileStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	target, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// URL maps the key onto the served media prefix.
func (f *FileStore) URL(_ context.Context, key string) (string, error) {
	if _, err := f.resolve(key); err != nil {
		return "", err
	}
	return f.urlPrefix + key, nil
}

// Delete removes an object if present.
func (f *FileStore) Delete(_ context.Context, key string) error {
	target, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// resolve rejects keys that would escape the base directory.
func (f *FileStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(f.basePath, filepath.FromSlash(clean)), nil
}
