// Package postgres provides a PostgreSQL-backed object metadata catalog.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/logging"
	"github.com/captain108/FileToLink-cap/internal/metrics"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Catalog is a PostgreSQL object catalog.
type Catalog struct {
	db *sql.DB
}

// New opens a catalog on databaseURL and verifies the connection.
func New(databaseURL string) (*Catalog, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Catalog{db: db}, nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Ping checks the database connection.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// UpdateConnectionMetrics updates the database connection metrics.
func (c *Catalog) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(c.db.Stats().OpenConnections)
}

// Migrate runs the embedded SQL migrations in lexical order. Every migration
// is idempotent.
func (c *Catalog) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", zap.String("file", path.Base(f)))
		content, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := c.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

// Lookup returns the metadata of an object, or domain.ErrObjectNotFound.
func (c *Catalog) Lookup(ctx context.Context, objectID int64) (*domain.ObjectMetadata, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCatalogQuery("postgres", "lookup", time.Since(start))
	}()

	var m domain.ObjectMetadata
	err := c.db.QueryRowContext(ctx,
		`SELECT unique_id, file_size, mime_type, file_name, storage_key
		 FROM objects WHERE id = $1`, objectID).
		Scan(&m.UniqueID, &m.FileSize, &m.MimeType, &m.FileName, &m.StorageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %d: %w", objectID, domain.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query object %d: %w", objectID, err)
	}
	return &m, nil
}

// Put inserts or replaces an object's metadata.
func (c *Catalog) Put(ctx context.Context, objectID int64, m *domain.ObjectMetadata) error {
	start := time.Now()
	defer func() {
		metrics.RecordCatalogQuery("postgres", "put", time.Since(start))
	}()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO objects (id, unique_id, file_size, mime_type, file_name, storage_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   unique_id = EXCLUDED.unique_id,
		   file_size = EXCLUDED.file_size,
		   mime_type = EXCLUDED.mime_type,
		   file_name = EXCLUDED.file_name,
		   storage_key = EXCLUDED.storage_key`,
		objectID, m.UniqueID, m.FileSize, m.MimeType, m.FileName, m.StorageKey)
	if err != nil {
		return fmt.Errorf("upsert object %d: %w", objectID, err)
	}
	return nil
}
