package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/htverse/apiserver/config"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// cacheControl is stored with every object. Banner keys change on each
// upload, so objects never need revalidation.
const cacheControl = "public, max-age=31536000, immutable"

// Object is an opened object together with its metadata.
type Object struct {
	io.ReadCloser
	Size        int64
	ContentType string
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend and rejects unsafe keys before
// they reach it.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open connects the backend selected by cfg.Backend and ensures its bucket
// exists. It returns nil when object storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var backend ObjectStorage
	var err error
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens an object. Missing keys yield ErrObjectNotFound.
func (s *Storage) Get(ctx context.Context, key string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("object key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
