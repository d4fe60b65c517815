package api

import (
	"fmt"
	"strings"
	"time"
)

// readableDuration formats d as "1d 2h 3m 4s", omitting zero units.
func readableDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}

	units := []struct {
		suffix string
		size   int64
	}{
		{"d", 86400},
		{"h", 3600},
		{"m", 60},
		{"s", 1},
	}

	var parts []string
	for _, u := range units {
		if n := secs / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
			secs %= u.size
		}
	}
	return strings.Join(parts, " ")
}
