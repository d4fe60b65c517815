package balancer

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captain108/FileToLink-cap/internal/backend"
	"github.com/captain108/FileToLink-cap/internal/backend/backendtest"
	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/streamer"
)

func newTestRegistry(t *testing.T, maxPerClient int, ids ...string) *Registry {
	t.Helper()
	r := NewRegistry(maxPerClient, func(c backend.Client) *streamer.Streamer {
		return streamer.New(c, streamer.Options{ChunkSize: 4})
	})
	for _, id := range ids {
		require.NoError(t, r.Add(backendtest.New(id)))
	}
	return r
}

func setLoads(r *Registry, loads map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range loads {
		r.byID[id].load = n
	}
}

func TestAcquireNoSessions(t *testing.T) {
	r := newTestRegistry(t, 8)
	_, err := r.Acquire()
	assert.ErrorIs(t, err, domain.ErrNoSessionsAvailable)
}

func TestAddDuplicate(t *testing.T) {
	r := newTestRegistry(t, 8, "A")
	assert.Error(t, r.Add(backendtest.New("A")))
	assert.Equal(t, 1, r.Count())
}

func TestSelection(t *testing.T) {
	tests := []struct {
		name  string
		loads map[string]int
		want  string
	}{
		{"prefers under cap", map[string]int{"A": 3, "B": 8, "C": 8}, "A"},
		{"all over cap picks global minimum", map[string]int{"A": 8, "B": 9, "C": 10}, "A"},
		{"minimum under cap", map[string]int{"A": 5, "B": 2, "C": 7}, "B"},
		{"tie goes to first registered", map[string]int{"A": 4, "B": 1, "C": 1}, "B"},
		{"all idle", map[string]int{}, "A"},
		{"over cap tie", map[string]int{"A": 9, "B": 8, "C": 8}, "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, 8, "A", "B", "C")
			setLoads(r, tt.loads)

			lease, err := r.Acquire()
			require.NoError(t, err)
			assert.Equal(t, tt.want, lease.SessionID())
			assert.Equal(t, tt.loads[tt.want]+1, r.Workloads()[tt.want])

			lease.Release()
			assert.Equal(t, tt.loads[tt.want], r.Workloads()[tt.want])
		})
	}
}

func TestReleaseIdempotent(t *testing.T) {
	r := newTestRegistry(t, 8, "A")
	l1, err := r.Acquire()
	require.NoError(t, err)
	l2, err := r.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, r.Workloads()["A"])

	l1.Release()
	l1.Release()
	assert.Equal(t, 1, r.Workloads()["A"])
	l2.Release()
	assert.Equal(t, 0, r.Workloads()["A"])
}

func TestStreamerReused(t *testing.T) {
	built := 0
	r := NewRegistry(8, func(c backend.Client) *streamer.Streamer {
		built++
		return streamer.New(c, streamer.Options{})
	})
	require.NoError(t, r.Add(backendtest.New("A")))

	l1, _ := r.Acquire()
	l2, _ := r.Acquire()
	assert.Same(t, l1.Streamer(), l2.Streamer())
	assert.Equal(t, 1, built)
	l1.Release()
	l2.Release()
}

func TestSpreadsLoad(t *testing.T) {
	r := newTestRegistry(t, 2, "A", "B", "C")
	var leases []*Lease
	for range 6 {
		l, err := r.Acquire()
		require.NoError(t, err)
		leases = append(leases, l)
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 2, "C": 2}, r.Workloads())

	// Everyone at cap: overflow lands on the first minimum.
	l, err := r.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "A", l.SessionID())
	leases = append(leases, l)

	for _, l := range leases {
		l.Release()
	}
	assert.Equal(t, map[string]int{"A": 0, "B": 0, "C": 0}, r.Workloads())
}

func TestConcurrentAcquireRelease(t *testing.T) {
	r := newTestRegistry(t, 8, "A", "B", "C")

	var wg sync.WaitGroup
	for i := range 1000 {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			l, err := r.Acquire()
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			time.Sleep(time.Duration(rng.Intn(200)) * time.Microsecond)
			l.Release()
			if rng.Intn(2) == 0 {
				l.Release()
			}
		}(int64(i))
	}
	wg.Wait()

	for id, n := range r.Workloads() {
		assert.Zero(t, n, "session %s", id)
	}
}

func TestAdapterCreatedOnce(t *testing.T) {
	var mu sync.Mutex
	built := 0
	r := NewRegistry(8, func(c backend.Client) *streamer.Streamer {
		mu.Lock()
		built++
		mu.Unlock()
		return streamer.New(c, streamer.Options{})
	})
	require.NoError(t, r.Add(backendtest.New("A")))

	var wg sync.WaitGroup
	got := make([]*streamer.Streamer, 50)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Adapter("A")
			if err != nil {
				t.Errorf("adapter: %v", err)
				return
			}
			got[i] = s
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, built)
	for _, s := range got {
		assert.Same(t, got[0], s)
	}

	_, err := r.Adapter("missing")
	assert.ErrorIs(t, err, domain.ErrNoSessionsAvailable)
}
