// Package backend defines the backend client sessions the gateway streams
// from. A session pairs a storage backend holding the bytes with the catalog
// that describes each object.
package backend

import (
	"context"
	"time"

	"github.com/captain108/FileToLink-cap/internal/domain"
)

// Client is an authenticated handle to the storage backend.
type Client interface {
	// ID identifies the session; it keys workload counters and adapters.
	ID() string

	// IsConnected reports whether the session is believed to be live.
	IsConnected() bool

	// Start (re)establishes the session.
	Start(ctx context.Context) error

	// FileInfo fetches fresh object metadata. Absent objects yield an error
	// wrapping domain.ErrObjectNotFound.
	FileInfo(ctx context.Context, objectID int64) (*domain.ObjectMetadata, error)

	// Chunk returns up to limit bytes of the object starting at offset.
	Chunk(ctx context.Context, meta *domain.ObjectMetadata, offset, limit int64) ([]byte, error)

	// DirectURL returns a time-limited URL serving the object directly, or
	// domain.ErrNoDirectURL.
	DirectURL(ctx context.Context, meta *domain.ObjectMetadata, ttl time.Duration) (string, error)
}

// Catalog resolves object ids to metadata.
type Catalog interface {
	Lookup(ctx context.Context, objectID int64) (*domain.ObjectMetadata, error)
	Ping(ctx context.Context) error
}
