// Package storage defines the Backend interface for object bytes and a factory
// that builds backends from their JSON configuration.
package storage

import (
	"context"
	"io"
	"time"
)

// Backend is the interface for content storage backends.
// Implementations handle raw object reads (S3, local filesystem, SMB mounts).
// Object metadata lives in a catalog, not here.
type Backend interface {
	// GetObject retrieves an object by key with optional range support.
	// If offset=0 and length=0, the entire object is returned. A missing key
	// yields an error wrapping domain.ErrObjectNotFound.
	GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error)

	// Ping checks that the backend is reachable and usable.
	Ping(ctx context.Context) error

	// Type returns the backend type identifier ("s3", "local", "smb").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// Presigner is implemented by backends that can hand out time-limited
// direct download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
