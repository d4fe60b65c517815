// Package streamer adapts a backend session into chunk-aligned byte streams.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/captain108/FileToLink-cap/internal/backend"
	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/logging"
	"github.com/captain108/FileToLink-cap/internal/metrics"
	"github.com/captain108/FileToLink-cap/internal/retry"
)

// DefaultChunkSize is the backend read granularity.
const DefaultChunkSize int64 = 1024 * 1024

// Options configures a Streamer.
type Options struct {
	ChunkSize int64         // Backend read granularity
	Timeout   time.Duration // Per metadata fetch and per chunk fetch
	Reconnect retry.Config
}

// Streamer reads objects from one backend session. It is safe for concurrent
// use; a single Streamer is shared by every request routed to its session.
type Streamer struct {
	client backend.Client
	opts   Options
	starts singleflight.Group
}

// New creates a Streamer for client.
func New(client backend.Client, opts Options) *Streamer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Reconnect.MaxAttempts == 0 {
		opts.Reconnect = retry.Reconnect()
	}
	return &Streamer{client: client, opts: opts}
}

// SessionID returns the id of the underlying session.
func (s *Streamer) SessionID() string { return s.client.ID() }

// ChunkSize returns the backend read granularity.
func (s *Streamer) ChunkSize() int64 { return s.opts.ChunkSize }

// EnsureConnected restarts the session if it is not connected. Concurrent
// callers share one restart.
func (s *Streamer) EnsureConnected(ctx context.Context) error {
	if s.client.IsConnected() {
		return nil
	}

	ch := s.starts.DoChan("start", func() (any, error) {
		if s.client.IsConnected() {
			return nil, nil
		}
		// Detached so one caller hanging up does not fail the others.
		startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
		defer cancel()

		return nil, retry.Do(startCtx, s.opts.Reconnect, func(attempt int) error {
			err := s.client.Start(startCtx)
			metrics.RecordSessionReconnect(s.client.ID(), err == nil)
			if err != nil {
				logging.Warn("backend session start failed",
					logging.Session(s.client.ID()),
					zap.Int("attempt", attempt),
					zap.Error(err))
				return retry.Retryable(err)
			}
			logging.Info("backend session started", logging.Session(s.client.ID()))
			return nil
		})
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: session %s: %v", domain.ErrBackendUnreachable, s.client.ID(), res.Err)
		}
		return nil
	}
}

// FileInfo fetches fresh metadata for objectID.
func (s *Streamer) FileInfo(ctx context.Context, objectID int64) (*domain.ObjectMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	meta, err := s.client.FileInfo(ctx, objectID)
	if err != nil {
		return nil, s.timeoutErr(err, "file info")
	}
	return meta, nil
}

// DirectURL returns a time-limited direct URL for meta.
func (s *Streamer) DirectURL(ctx context.Context, meta *domain.ObjectMetadata, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	u, err := s.client.DirectURL(ctx, meta, ttl)
	if err != nil {
		return "", s.timeoutErr(err, "direct url")
	}
	return u, nil
}

// Stream yields the bytes [offset, offset+length) of meta in order.
//
// Reads are issued at chunk-aligned offsets; the first and last chunks are
// trimmed so the concatenated output is exactly length bytes. Iteration
// stops at the first error, which is yielded with a nil slice. Stopping the
// iteration early stops further backend reads.
func (s *Streamer) Stream(ctx context.Context, meta *domain.ObjectMetadata, offset, length int64) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if length <= 0 {
			return
		}

		chunk := s.opts.ChunkSize
		until := offset + length - 1
		aligned := offset - offset%chunk
		firstCut := offset - aligned
		lastCut := until%chunk + 1
		parts := until/chunk - aligned/chunk + 1

		for part := int64(0); part < parts; part++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			at := aligned + part*chunk
			data, err := s.fetch(ctx, meta, at)
			if err != nil {
				yield(nil, err)
				return
			}

			lo, hi := int64(0), chunk
			if part == 0 {
				lo = firstCut
			}
			if part == parts-1 {
				hi = lastCut
			}
			if int64(len(data)) < hi {
				yield(nil, fmt.Errorf("chunk at %d of %s: got %d bytes, want %d: %w",
					at, meta.StorageKey, len(data), hi, io.ErrUnexpectedEOF))
				return
			}

			if !yield(data[lo:hi], nil) {
				return
			}
		}
	}
}

func (s *Streamer) fetch(ctx context.Context, meta *domain.ObjectMetadata, offset int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	data, err := s.client.Chunk(ctx, meta, offset, s.opts.ChunkSize)
	if err != nil {
		return nil, s.timeoutErr(err, fmt.Sprintf("chunk at %d", offset))
	}
	return data, nil
}

// timeoutErr maps a per-operation deadline into ErrBackendUnreachable.
func (s *Streamer) timeoutErr(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: session %s: %s timed out after %s",
			domain.ErrBackendUnreachable, s.client.ID(), op, s.opts.Timeout)
	}
	return err
}
