// Package backendtest provides an in-memory backend.Client for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/captain108/FileToLink-cap/internal/domain"
)

// Object is an object served by a Client.
type Object struct {
	Meta domain.ObjectMetadata
	Data []byte
}

// Client is an in-memory backend.Client. The exported fields may be set
// before the client is shared between goroutines.
type Client struct {
	Name string

	// StartErr is returned by Start while StartFailures > 0. Each failing
	// call decrements StartFailures.
	StartErr      error
	StartFailures int

	// ChunkErr, when set, is returned by Chunk for offsets >= ChunkErrAt.
	ChunkErr   error
	ChunkErrAt int64

	// ChunkDelay is slept (honouring ctx) before every Chunk.
	ChunkDelay time.Duration

	// DirectURLBase enables DirectURL; empty means unsupported.
	DirectURLBase string

	mu        sync.Mutex
	objects   map[int64]Object
	connected atomic.Bool

	Starts      atomic.Int32
	ChunkCalls  atomic.Int32
	InfoCalls   atomic.Int32
	chunkOffset []int64
}

// New returns a disconnected client named name.
func New(name string) *Client {
	return &Client{Name: name, objects: make(map[int64]Object)}
}

// Put stores an object under id.
func (c *Client) Put(id int64, meta domain.ObjectMetadata, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[id] = Object{Meta: meta, Data: data}
}

// SetConnected forces the connected flag.
func (c *Client) SetConnected(v bool) { c.connected.Store(v) }

// ChunkOffsets returns the offsets Chunk was called with, in call order.
func (c *Client) ChunkOffsets() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.chunkOffset...)
}

func (c *Client) ID() string { return c.Name }

func (c *Client) IsConnected() bool { return c.connected.Load() }

func (c *Client) Start(ctx context.Context) error {
	c.Starts.Add(1)
	c.mu.Lock()
	fail := c.StartFailures > 0
	if fail {
		c.StartFailures--
	}
	c.mu.Unlock()
	if fail {
		return c.StartErr
	}
	c.connected.Store(true)
	return nil
}

func (c *Client) FileInfo(_ context.Context, id int64) (*domain.ObjectMetadata, error) {
	c.InfoCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %d: %w", id, domain.ErrObjectNotFound)
	}
	meta := obj.Meta
	return &meta, nil
}

func (c *Client) Chunk(ctx context.Context, meta *domain.ObjectMetadata, offset, limit int64) ([]byte, error) {
	c.ChunkCalls.Add(1)
	c.mu.Lock()
	c.chunkOffset = append(c.chunkOffset, offset)
	var data []byte
	for _, obj := range c.objects {
		if obj.Meta.StorageKey == meta.StorageKey {
			data = obj.Data
			break
		}
	}
	c.mu.Unlock()

	if c.ChunkDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.ChunkDelay):
		}
	}
	if c.ChunkErr != nil && offset >= c.ChunkErrAt {
		return nil, c.ChunkErr
	}
	if data == nil {
		return nil, fmt.Errorf("key %s: %w", meta.StorageKey, domain.ErrObjectNotFound)
	}
	if offset >= int64(len(data)) {
		return []byte{}, nil
	}
	end := min(offset+limit, int64(len(data)))
	return append([]byte(nil), data[offset:end]...), nil
}

func (c *Client) DirectURL(_ context.Context, meta *domain.ObjectMetadata, ttl time.Duration) (string, error) {
	if c.DirectURLBase == "" {
		return "", domain.ErrNoDirectURL
	}
	return fmt.Sprintf("%s/%s?ttl=%d", c.DirectURLBase, meta.StorageKey, int(ttl.Seconds())), nil
}
