package api

import (
	"testing"
	"time"
)

func TestReadableDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{500 * time.Millisecond, "0s"},
		{4 * time.Second, "4s"},
		{90 * time.Minute, "1h 30m"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
		{48 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := readableDuration(tt.in); got != tt.want {
			t.Errorf("readableDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
