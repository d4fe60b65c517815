package delivery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/captain108/FileToLink-cap/internal/balancer"
	"github.com/captain108/FileToLink-cap/internal/byterange"
	"github.com/captain108/FileToLink-cap/internal/domain"
	"github.com/captain108/FileToLink-cap/internal/metrics"
)

// Media is an opened delivery: a verified object, a negotiated window and
// the session lease that counts it. The lease is released when Send returns
// or Close is called, whichever comes first.
type Media struct {
	Request domain.StreamRequest
	Meta    *domain.ObjectMetadata
	Range   byterange.Range

	lease *balancer.Lease
}

// SessionID returns the session serving the media.
func (m *Media) SessionID() string { return m.lease.SessionID() }

// Close releases the session lease. It is safe to call more than once.
func (m *Media) Close() {
	m.lease.Release()
}

// SetHeaders writes the delivery headers for a 206 response.
func (m *Media) SetHeaders(h http.Header) {
	mimeType := m.Meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", contentDisposition(m.Meta.FileName))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-store")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Content-Range", m.Range.ContentRange(m.Meta.FileSize))
	h.Set("Content-Length", strconv.FormatInt(m.Range.Length(), 10))
}

// Send streams the window to w, flushing after every chunk so the next
// backend read only starts once the previous chunk left the process. The
// lease is released before Send returns.
func (m *Media) Send(ctx context.Context, w http.ResponseWriter) (int64, error) {
	defer m.Close()

	rc := http.NewResponseController(w)
	s := m.lease.Streamer()
	var n int64
	defer func() { metrics.AddDeliveredBytes(m.SessionID(), n) }()

	for chunk, err := range s.Stream(ctx, m.Meta, m.Range.Start, m.Range.Length()) {
		if err != nil {
			return n, err
		}
		k, err := w.Write(chunk)
		n += int64(k)
		if err != nil {
			return n, err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return n, err
		}
	}
	return n, nil
}

// contentDisposition builds an inline disposition with an RFC 5987 encoded
// filename. Objects without a name get file_<8 hex>.
func contentDisposition(name string) string {
	if name == "" {
		name = fallbackName()
	}
	return "inline; filename*=UTF-8''" + encodeRFC5987(name)
}

func fallbackName() string {
	b := make([]byte, 4)
	rand.Read(b)
	return "file_" + hex.EncodeToString(b)
}

const upperhex = "0123456789ABCDEF"

// encodeRFC5987 percent-encodes every byte outside attr-char.
func encodeRFC5987(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperhex[c>>4])
		sb.WriteByte(upperhex[c&0x0f])
	}
	return sb.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
