package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/captain108/FileToLink-cap/internal/config"
	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/logging"
	"github.com/captain108/FileToLink-cap/internal/storage"
)

// Session implements Client on top of a storage backend and a catalog.
type Session struct {
	name      string
	store     storage.Backend
	catalog   Catalog
	connected atomic.Bool
}

// NewSession creates a session. It starts disconnected.
func NewSession(name string, store storage.Backend, catalog Catalog) *Session {
	return &Session{name: name, store: store, catalog: catalog}
}

// NewSessions builds one session per SessionSpec, all sharing catalog.
func NewSessions(ctx context.Context, specs []config.SessionSpec, catalog Catalog) ([]*Session, error) {
	sessions := make([]*Session, 0, len(specs))
	for _, spec := range specs {
		store, err := storage.NewBackendFromConfig(ctx, spec.Type, spec.Config)
		if err != nil {
			for _, s := range sessions {
				s.Close()
			}
			return nil, fmt.Errorf("session %s: %w", spec.Name, err)
		}
		sessions = append(sessions, NewSession(spec.Name, store, catalog))
	}
	return sessions, nil
}

// ID returns the session name.
func (s *Session) ID() string { return s.name }

// IsConnected reports whether the last Start succeeded and no backend
// failure has been seen since.
func (s *Session) IsConnected() bool { return s.connected.Load() }

// Start verifies the catalog and the storage backend.
func (s *Session) Start(ctx context.Context) error {
	if err := s.catalog.Ping(ctx); err != nil {
		s.connected.Store(false)
		return fmt.Errorf("catalog: %w", err)
	}
	if err := s.store.Ping(ctx); err != nil {
		s.connected.Store(false)
		return fmt.Errorf("%s storage: %w", s.store.Type(), err)
	}
	s.connected.Store(true)
	return nil
}

// FileInfo looks the object up in the catalog.
func (s *Session) FileInfo(ctx context.Context, objectID int64) (*domain.ObjectMetadata, error) {
	meta, err := s.catalog.Lookup(ctx, objectID)
	if err != nil {
		s.noteFailure(err)
		return nil, err
	}
	return meta, nil
}

// Chunk reads up to limit bytes at offset from the storage backend.
func (s *Session) Chunk(ctx context.Context, meta *domain.ObjectMetadata, offset, limit int64) ([]byte, error) {
	rc, _, err := s.store.GetObject(ctx, meta.StorageKey, offset, limit)
	if err != nil {
		s.noteFailure(err)
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		s.noteFailure(err)
		return nil, fmt.Errorf("read %s at %d: %w", meta.StorageKey, offset, err)
	}
	return data, nil
}

// DirectURL presigns the object when the storage backend supports it.
func (s *Session) DirectURL(ctx context.Context, meta *domain.ObjectMetadata, ttl time.Duration) (string, error) {
	p, ok := s.store.(storage.Presigner)
	if !ok {
		return "", fmt.Errorf("%s storage: %w", s.store.Type(), domain.ErrNoDirectURL)
	}
	return p.PresignGet(ctx, meta.StorageKey, ttl)
}

// Close releases the storage backend.
func (s *Session) Close() error {
	return s.store.Close()
}

// noteFailure drops the connected flag on infrastructure errors so the next
// request restarts the session. Missing objects and caller cancellation say
// nothing about the session's health.
func (s *Session) noteFailure(err error) {
	if errors.Is(err, domain.ErrObjectNotFound) || errors.Is(err, context.Canceled) {
		return
	}
	if s.connected.Swap(false) {
		logging.Warn("backend session marked disconnected",
			logging.Session(s.name), zap.Error(err))
	}
}
