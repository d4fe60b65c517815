// Package byterange negotiates a single HTTP byte range against a known size.
package byterange

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/captain108/FileToLink-cap/internal/domain"
)

var rangeRegex = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// Range is an inclusive, zero-indexed byte window.
type Range struct {
	Start int64
	End   int64
}

// Length returns the number of bytes in the window.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for the window.
func (r Range) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// Parse returns the window selected by header within total bytes.
//
// An empty header selects everything. Otherwise the header must be
// bytes=<start>-<end> with either side optional: a missing end means the last
// byte and an end past the last byte is clamped. The suffix form bytes=-N is
// not supported and, like start > end or start past the last byte, fails with
// domain.ErrMalformedRange.
func Parse(header string, total int64) (Range, error) {
	if total <= 0 {
		return Range{}, fmt.Errorf("%w: empty object", domain.ErrMalformedRange)
	}
	last := total - 1
	if header == "" {
		return Range{Start: 0, End: last}, nil
	}

	m := rangeRegex.FindStringSubmatch(header)
	if m == nil {
		return Range{}, fmt.Errorf("%w: %q", domain.ErrMalformedRange, header)
	}
	startStr, endStr := m[1], m[2]
	if startStr == "" && endStr != "" {
		return Range{}, fmt.Errorf("%w: suffix ranges unsupported", domain.ErrMalformedRange)
	}

	r := Range{Start: 0, End: last}
	var err error
	if startStr != "" {
		if r.Start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
			return Range{}, fmt.Errorf("%w: start: %v", domain.ErrMalformedRange, err)
		}
	}
	if endStr != "" {
		if r.End, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			return Range{}, fmt.Errorf("%w: end: %v", domain.ErrMalformedRange, err)
		}
	}
	r.End = min(r.End, last)

	if r.Start > r.End {
		return Range{}, fmt.Errorf("%w: start %d past end %d", domain.ErrMalformedRange, r.Start, r.End)
	}
	return r, nil
}
