// Package redis provides a Redis-backed object metadata catalog. Each object
// is a hash at object:<id> with the fields unique_id, file_size, mime_type,
// file_name and storage_key.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/metrics"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	DB       int
	Password string
}

// Catalog is a Redis object catalog.
type Catalog struct {
	rdb *goredis.Client
}

// New creates a catalog. The connection is established lazily; call Ping to
// verify it.
func New(cfg Config) *Catalog {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return &Catalog{rdb: rdb}
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client) *Catalog {
	return &Catalog{rdb: rdb}
}

// Ping checks the Redis connection.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (c *Catalog) Close() error {
	return c.rdb.Close()
}

// Lookup returns the metadata of an object, or domain.ErrObjectNotFound.
func (c *Catalog) Lookup(ctx context.Context, objectID int64) (*domain.ObjectMetadata, error) {
	start := time.Now()
	fields, err := c.rdb.HGetAll(ctx, objectKey(objectID)).Result()
	metrics.RecordCatalogQuery("redis", "lookup", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("hgetall object %d: %w", objectID, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("object %d: %w", objectID, domain.ErrObjectNotFound)
	}
	return fromHash(fields)
}

// Put stores an object's metadata.
func (c *Catalog) Put(ctx context.Context, objectID int64, m *domain.ObjectMetadata) error {
	start := time.Now()
	err := c.rdb.HSet(ctx, objectKey(objectID), toHash(m)).Err()
	metrics.RecordCatalogQuery("redis", "put", time.Since(start))
	if err != nil {
		return fmt.Errorf("hset object %d: %w", objectID, err)
	}
	return nil
}

func objectKey(objectID int64) string {
	return "object:" + strconv.FormatInt(objectID, 10)
}

func fromHash(fields map[string]string) (*domain.ObjectMetadata, error) {
	m := &domain.ObjectMetadata{
		UniqueID:   fields["unique_id"],
		MimeType:   fields["mime_type"],
		FileName:   fields["file_name"],
		StorageKey: fields["storage_key"],
	}
	if raw := fields["file_size"]; raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("file_size %q: %w", raw, err)
		}
		m.FileSize = size
	}
	return m, nil
}

func toHash(m *domain.ObjectMetadata) map[string]any {
	return map[string]any{
		"unique_id":   m.UniqueID,
		"file_size":   m.FileSize,
		"mime_type":   m.MimeType,
		"file_name":   m.FileName,
		"storage_key": m.StorageKey,
	}
}
