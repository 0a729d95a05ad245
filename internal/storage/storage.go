package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aimaster/apiserver/config"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend and knows the public URL of the
// objects it writes.
type Storage struct {
	backend       ObjectStorage
	publicBaseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend. Object
// keys are appended to publicBaseURL to build their public URL.
func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	return &Storage{
		backend:       backend,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Open builds the backend selected by cfg.Artifacts.Backend and makes sure its
// bucket or directory exists.
func Open(ctx context.Context, cfg config.Config) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Artifacts.Backend)) {
	case "", "local":
		backend, err = NewLocalStorage(cfg.Artifacts.LocalDir)
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "s3":
		backend, err = NewS3Client(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown artifacts backend %q", cfg.Artifacts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return NewStorage(backend, cfg.Artifacts.PublicBaseURL), nil
}

// Backend exposes the wrapped backend.
func (s *Storage) Backend() ObjectStorage {
	return s.backend
}

// URL returns the public URL of key.
func (s *Storage) URL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

// PublishPage renders page and overwrites the object at key with it.
func (s *Storage) PublishPage(ctx context.Context, key string, page Page) error {
	body, err := RenderPage(page)
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, key, bytes.NewReader(body), int64(len(body)), pageContentType)
}
