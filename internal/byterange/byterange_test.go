package byterange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captain108/FileToLink-cap/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		header string
		start  int64
		end    int64
	}{
		{"", 0, 999},
		{"bytes=100-199", 100, 199},
		{"bytes=500-", 500, 999},
		{"bytes=0-0", 0, 0},
		{"bytes=900-5000", 900, 999},
		{"bytes=-", 0, 999},
		{"bytes=999-", 999, 999},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r, err := Parse(tt.header, 1000)
			require.NoError(t, err)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
			assert.Equal(t, tt.end-tt.start+1, r.Length())
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, h := range []string{
		"bytes=-200",
		"bytes=abc-def",
		"bytes 1-2",
		"items=0-10",
		"bytes=0-10,20-30",
		"bytes=300-200",
		"bytes=1000-",
		"bytes=99999999999999999999-",
	} {
		t.Run(h, func(t *testing.T) {
			_, err := Parse(h, 1000)
			assert.ErrorIs(t, err, domain.ErrMalformedRange)
		})
	}
}

func TestParseEmptyObject(t *testing.T) {
	_, err := Parse("", 0)
	assert.ErrorIs(t, err, domain.ErrMalformedRange)
}

func TestContentRange(t *testing.T) {
	r, err := Parse("", 5000)
	require.NoError(t, err)
	assert.Equal(t, "bytes 0-4999/5000", r.ContentRange(5000))
}
