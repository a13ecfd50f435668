package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	ierrors "github.com/graphnet-team/datainspect/internal/errors"
)

// S3Scheme prefixes store locations that live in an S3 bucket.
const S3Scheme = "s3://"

// snappySuffixes mark stores shipped as snappy framed streams.
var snappySuffixes = []string{".snappy", ".sz"}

// RemoteFactory returns the object storage serving bucket.
type RemoteFactory func(ctx context.Context, bucket string) (ObjectStorage, error)

// S3Factory returns a RemoteFactory that builds S3 clients from cfg.
func S3Factory(cfg S3Config) RemoteFactory {
	return func(ctx context.Context, bucket string) (ObjectStorage, error) {
		return NewS3Storage(ctx, bucket, cfg)
	}
}

// Stager turns store locations into local SQLite file paths.
//
// Plain local stores are used in place and never copied. Remote stores are
// downloaded into the cache directory, and snappy-compressed stores are
// decoded there, on every call so a run always sees the current object.
type Stager struct {
	local    *LocalStorage
	cacheDir string
	remote   RemoteFactory

	mu      sync.Mutex
	buckets map[string]ObjectStorage
}

// NewStager creates a stager resolving relative locations against dataDir
// and staging into cacheDir. remote may be nil when only local stores are used.
func NewStager(dataDir, cacheDir string, remote RemoteFactory) *Stager {
	return &Stager{
		local:    NewLocalStorage(dataDir),
		cacheDir: cacheDir,
		remote:   remote,
		buckets:  make(map[string]ObjectStorage),
	}
}

// ParseLocation splits an s3://bucket/key location. ok is false for local paths.
func ParseLocation(location string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(location, S3Scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(location, S3Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	return bucket, key, true
}

// IsCompressed reports whether location names a snappy-compressed store.
func IsCompressed(location string) bool {
	lower := strings.ToLower(location)
	for _, suffix := range snappySuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Stage returns a local path of the SQLite store at location.
func (s *Stager) Stage(ctx context.Context, location string) (string, error) {
	src, objectPath, remote, err := s.source(ctx, location)
	if err != nil {
		return "", err
	}

	compressed := IsCompressed(objectPath)
	if !remote && !compressed {
		return s.local.Path(objectPath), nil
	}

	exists, err := src.Exists(ctx, objectPath)
	if err != nil {
		return "", ierrors.NewStoreError(ierrors.CodeDownloadFailed,
			fmt.Sprintf("check store %s", location), err)
	}
	if !exists {
		return "", ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
			fmt.Sprintf("store %s not found", location), ErrObjectNotFound)
	}

	cacheKey := location
	if !remote {
		cacheKey = s.local.Path(objectPath)
	}
	target := s.cachePath(cacheKey, objectPath)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", ierrors.NewStoreError(ierrors.CodeDownloadFailed,
			fmt.Sprintf("create cache dir for %s", location), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".staging-*")
	if err != nil {
		return "", ierrors.NewStoreError(ierrors.CodeDownloadFailed,
			fmt.Sprintf("create staging file for %s", location), err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if compressed {
		err = s.decompress(ctx, src, objectPath, tmpPath)
	} else {
		err = src.Download(ctx, objectPath, tmpPath)
	}
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return "", ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
				fmt.Sprintf("store %s not found", location), err)
		}
		return "", ierrors.NewStoreError(ierrors.CodeDownloadFailed,
			fmt.Sprintf("stage store %s", location), err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return "", ierrors.NewStoreError(ierrors.CodeDownloadFailed,
			fmt.Sprintf("cache store %s", location), err)
	}

	log.Printf("storage: staged %s to %s", location, target)
	return target, nil
}

// source picks the object storage serving location.
func (s *Stager) source(ctx context.Context, location string) (ObjectStorage, string, bool, error) {
	bucket, key, ok := ParseLocation(location)
	if !ok {
		return s.local, location, false, nil
	}
	if bucket == "" || key == "" {
		return nil, "", false, ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
			fmt.Sprintf("invalid store location %q", location), nil)
	}
	if s.remote == nil {
		return nil, "", false, ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
			fmt.Sprintf("no remote storage configured for %s", location), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.buckets[bucket]; ok {
		return st, key, true, nil
	}
	st, err := s.remote(ctx, bucket)
	if err != nil {
		return nil, "", false, ierrors.NewStoreError(ierrors.CodeStoreUnavailable,
			fmt.Sprintf("connect to bucket %s", bucket), err)
	}
	s.buckets[bucket] = st
	return st, key, true, nil
}

// decompress streams a snappy framed object into localPath.
func (s *Stager) decompress(ctx context.Context, src ObjectStorage, objectPath, localPath string) error {
	rc, err := src.Open(ctx, objectPath)
	if err != nil {
		return err
	}
	defer rc.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, snappy.NewReader(rc)); err != nil {
		return fmt.Errorf("%w: decode snappy stream: %v", ErrDownloadFailed, err)
	}
	return dst.Sync()
}

// cachePath returns where the store identified by key is staged. Distinct
// keys never share a path even when their file names collide.
func (s *Stager) cachePath(key, objectPath string) string {
	base := filepath.Base(objectPath)
	lower := strings.ToLower(base)
	for _, suffix := range snappySuffixes {
		if strings.HasSuffix(lower, suffix) {
			base = base[:len(base)-len(suffix)]
			break
		}
	}
	dir := fmt.Sprintf("%016x", murmur3.Sum64([]byte(key)))
	return filepath.Join(s.cacheDir, dir, base)
}
