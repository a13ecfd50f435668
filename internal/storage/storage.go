// Package storage resolves store locations to local SQLite files, fetching
// them from object storage and decompressing them when needed.
package storage

import (
	"context"
	"errors"
	"io"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrDownloadFailed = errors.New("download failed")
)

// ObjectStorage is the read-only view of object storage the stager needs.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Open returns a reader for the object's content.
	// The caller must close it.
	Open(ctx context.Context, objectPath string) (io.ReadCloser, error)

	// Download downloads an object to a local file.
	// objectPath is the source path in object storage.
	// localPath is the destination path on the local filesystem.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)
}
