package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage implements ObjectStorage on the local filesystem.
// Object paths are relative to basePath unless they are absolute.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a local filesystem storage rooted at basePath.
// Unlike remote storage the directory is not created: a missing data
// directory simply means every store in it is unavailable.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// Path returns the filesystem path of objectPath.
func (l *LocalStorage) Path(objectPath string) string {
	if filepath.IsAbs(objectPath) {
		return filepath.Clean(objectPath)
	}
	return filepath.Join(l.basePath, objectPath)
}

// Open opens an object for reading.
func (l *LocalStorage) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.Path(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return f, nil
}

// Download copies an object to localPath.
func (l *LocalStorage) Download(ctx context.Context, objectPath, localPath string) error {
	src, err := l.Open(ctx, objectPath)
	if err != nil {
		return err
	}
	defer src.Close()

	// Create parent directories for destination
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

// Exists checks if an object exists in local storage.
func (l *LocalStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(l.Path(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
