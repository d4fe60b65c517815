// Package balancer tracks per-session workloads and picks the session that
// serves each request.
package balancer

import (
	"fmt"
	"sync"

	"github.com/captain108/FileToLink-cap/internal/backend"
	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/metrics"
	"github.com/captain108/FileToLink-cap/internal/streamer"
)

// DefaultMaxConcurrentPerClient is the soft per-session stream cap.
const DefaultMaxConcurrentPerClient = 8

// NewStreamerFunc builds the streamer adapter for a session.
type NewStreamerFunc func(backend.Client) *streamer.Streamer

type entry struct {
	client   backend.Client
	streamer *streamer.Streamer
	load     int
}

// Registry holds the sessions in registration order and their workloads.
// Selection and the workload increment happen in one critical section so
// concurrent requests never observe the same stale minimum.
type Registry struct {
	mu          sync.Mutex
	entries     []*entry
	byID        map[string]*entry
	cap         int
	newStreamer NewStreamerFunc
}

// NewRegistry creates an empty registry. A non-positive cap uses
// DefaultMaxConcurrentPerClient.
func NewRegistry(maxPerClient int, newStreamer NewStreamerFunc) *Registry {
	if maxPerClient <= 0 {
		maxPerClient = DefaultMaxConcurrentPerClient
	}
	return &Registry{
		byID:        make(map[string]*entry),
		cap:         maxPerClient,
		newStreamer: newStreamer,
	}
}

// Add registers a session with zero workload.
func (r *Registry) Add(c backend.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("session %q already registered", id)
	}
	e := &entry{client: c}
	r.entries = append(r.entries, e)
	r.byID[id] = e

	metrics.SetSessionsActive(len(r.entries))
	metrics.SetSessionWorkload(id, 0)
	return nil
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Cap returns the soft per-session cap.
func (r *Registry) Cap() int { return r.cap }

// Workloads returns a snapshot of session id to in-flight stream count.
func (r *Registry) Workloads() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.entries))
	for _, e := range r.entries {
		out[e.client.ID()] = e.load
	}
	return out
}

// Acquire picks a session, counts one stream against it and returns a lease.
// The lease must be released exactly once; extra releases are ignored.
func (r *Registry) Acquire() (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.pick()
	if e == nil {
		return nil, domain.ErrNoSessionsAvailable
	}
	r.adapter(e)
	e.load++
	metrics.SetSessionWorkload(e.client.ID(), e.load)

	return &Lease{registry: r, entry: e}, nil
}

// Adapter returns the streamer for session id, creating it on first use.
func (r *Registry) Adapter(id string) (*streamer.Streamer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrNoSessionsAvailable)
	}
	return r.adapter(e), nil
}

// adapter must be called with r.mu held.
func (r *Registry) adapter(e *entry) *streamer.Streamer {
	if e.streamer == nil {
		e.streamer = r.newStreamer(e.client)
	}
	return e.streamer
}

// pick prefers the least-loaded session below the cap and falls back to the
// least-loaded session overall. Ties go to the earliest registered.
func (r *Registry) pick() *entry {
	var under, least *entry
	for _, e := range r.entries {
		if e.load < r.cap && (under == nil || e.load < under.load) {
			under = e
		}
		if least == nil || e.load < least.load {
			least = e
		}
	}
	if under != nil {
		return under
	}
	return least
}

func (r *Registry) release(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.load > 0 {
		e.load--
	}
	metrics.SetSessionWorkload(e.client.ID(), e.load)
}

// Lease is one counted stream on a session.
type Lease struct {
	registry *Registry
	entry    *entry
	once     sync.Once
}

// SessionID returns the id of the leased session.
func (l *Lease) SessionID() string { return l.entry.client.ID() }

// Streamer returns the streamer adapter of the leased session.
func (l *Lease) Streamer() *streamer.Streamer { return l.entry.streamer }

// Release returns the stream to the registry. It is idempotent.
func (l *Lease) Release() {
	l.once.Do(func() { l.registry.release(l.entry) })
}
