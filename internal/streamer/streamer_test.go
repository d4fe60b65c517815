package streamer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captain108/FileToLink-cap/internal/backend/backendtest"
	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/logging"
	"github.com/captain108/FileToLink-cap/internal/retry"
)

const payload = "0123456789abcdef"

var testMeta = domain.ObjectMetadata{
	UniqueID:   "abc123",
	FileSize:   int64(len(payload)),
	MimeType:   "application/octet-stream",
	FileName:   "sample.bin",
	StorageKey: "objects/42",
}

func fastReconnect() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}
}

func newTestStreamer(t *testing.T) (*Streamer, *backendtest.Client) {
	t.Helper()
	logging.InitNop()
	c := backendtest.New("primary")
	c.Put(42, testMeta, []byte(payload))
	c.SetConnected(true)
	return New(c, Options{ChunkSize: 4, Timeout: time.Second, Reconnect: fastReconnect()}), c
}

func collect(t *testing.T, seq func(func([]byte, error) bool)) (string, error) {
	t.Helper()
	var out []byte
	for b, err := range seq {
		if err != nil {
			return string(out), err
		}
		out = append(out, b...)
	}
	return string(out), nil
}

func TestStreamSlices(t *testing.T) {
	tests := []struct {
		name    string
		offset  int64
		length  int64
		want    string
		offsets []int64
	}{
		{"whole object", 0, 16, payload, []int64{0, 4, 8, 12}},
		{"spans two chunks", 5, 6, "56789a", []int64{4, 8}},
		{"inside one chunk", 5, 2, "56", []int64{4}},
		{"aligned start", 8, 4, "89ab", []int64{8}},
		{"last byte", 15, 1, "f", []int64{12}},
		{"tail", 10, 6, "abcdef", []int64{8, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newTestStreamer(t)
			meta := testMeta
			got, err := collect(t, s.Stream(context.Background(), &meta, tt.offset, tt.length))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.offsets, c.ChunkOffsets())
		})
	}
}

func TestStreamEmptyLength(t *testing.T) {
	s, c := newTestStreamer(t)
	meta := testMeta
	got, err := collect(t, s.Stream(context.Background(), &meta, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, c.ChunkCalls.Load())
}

func TestStreamStopsOnChunkError(t *testing.T) {
	s, c := newTestStreamer(t)
	c.ChunkErr = errors.New("connection reset")
	c.ChunkErrAt = 8
	meta := testMeta

	got, err := collect(t, s.Stream(context.Background(), &meta, 0, 16))
	require.Error(t, err)
	assert.Equal(t, "01234567", got)
	assert.Equal(t, []int64{0, 4, 8}, c.ChunkOffsets())
}

func TestStreamShortObject(t *testing.T) {
	s, _ := newTestStreamer(t)
	meta := testMeta
	meta.FileSize = 20

	got, err := collect(t, s.Stream(context.Background(), &meta, 0, 20))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, payload, got)
}

func TestStreamEarlyBreak(t *testing.T) {
	s, c := newTestStreamer(t)
	meta := testMeta
	for range s.Stream(context.Background(), &meta, 0, 16) {
		break
	}
	assert.EqualValues(t, 1, c.ChunkCalls.Load())
}

func TestStreamCanceledContext(t *testing.T) {
	s, c := newTestStreamer(t)
	meta := testMeta
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collect(t, s.Stream(ctx, &meta, 0, 16))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.ChunkCalls.Load())
}

func TestStreamChunkTimeout(t *testing.T) {
	logging.InitNop()
	c := backendtest.New("slow")
	c.Put(42, testMeta, []byte(payload))
	c.SetConnected(true)
	c.ChunkDelay = 200 * time.Millisecond
	s := New(c, Options{ChunkSize: 4, Timeout: 20 * time.Millisecond, Reconnect: fastReconnect()})
	meta := testMeta

	_, err := collect(t, s.Stream(context.Background(), &meta, 0, 4))
	assert.ErrorIs(t, err, domain.ErrBackendUnreachable)
}

func TestFileInfo(t *testing.T) {
	s, _ := newTestStreamer(t)

	meta, err := s.FileInfo(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "abc123", meta.UniqueID)

	_, err = s.FileInfo(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestEnsureConnectedAlreadyConnected(t *testing.T) {
	s, c := newTestStreamer(t)
	require.NoError(t, s.EnsureConnected(context.Background()))
	assert.Zero(t, c.Starts.Load())
}

func TestEnsureConnectedRetriesOnce(t *testing.T) {
	s, c := newTestStreamer(t)
	c.SetConnected(false)
	c.StartErr = errors.New("flood wait")
	c.StartFailures = 1

	require.NoError(t, s.EnsureConnected(context.Background()))
	assert.EqualValues(t, 2, c.Starts.Load())
	assert.True(t, c.IsConnected())
}

func TestEnsureConnectedGivesUp(t *testing.T) {
	s, c := newTestStreamer(t)
	c.SetConnected(false)
	c.StartErr = errors.New("auth key revoked")
	c.StartFailures = 5

	err := s.EnsureConnected(context.Background())
	assert.ErrorIs(t, err, domain.ErrBackendUnreachable)
	assert.EqualValues(t, 2, c.Starts.Load())
}

func TestDirectURL(t *testing.T) {
	s, c := newTestStreamer(t)
	meta := testMeta

	_, err := s.DirectURL(context.Background(), &meta, time.Hour)
	assert.ErrorIs(t, err, domain.ErrNoDirectURL)

	c.DirectURLBase = "https://cdn.example.com"
	u, err := s.DirectURL(context.Background(), &meta, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/objects/42?ttl=3600", u)
}

func TestDefaults(t *testing.T) {
	s := New(backendtest.New("x"), Options{})
	assert.Equal(t, DefaultChunkSize, s.ChunkSize())
	assert.Equal(t, "x", s.SessionID())
}
