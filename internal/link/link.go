// Package link encodes and decodes the link tokens that address stored objects.
//
// Two shapes are accepted, tried in order:
//
//	{hash}{id}[/anything]     hash is exactly domain.SecureHashLength characters
//	{id}[/anything]?hash=...  hash travels in the query string
package link

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/captain108/FileToLink-cap/internal/domain"
)

var (
	hashFirstRegex = regexp.MustCompile(fmt.Sprintf(`^([a-zA-Z0-9_-]{%d})(\d+)(?:/.*)?$`, domain.SecureHashLength))
	idFirstRegex   = regexp.MustCompile(`^(\d+)(?:/.*)?$`)
	validHashRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Parse decodes a raw (still percent-encoded) path and its query into a Link.
// Every failure is domain.ErrInvalidLink.
func Parse(rawPath string, query url.Values) (domain.Link, error) {
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return domain.Link{}, fmt.Errorf("%w: unescape path: %v", domain.ErrInvalidLink, err)
	}
	clean := strings.Trim(decoded, "/")

	var idStr, hash string
	if m := hashFirstRegex.FindStringSubmatch(clean); m != nil {
		hash, idStr = m[1], m[2]
	} else if m := idFirstRegex.FindStringSubmatch(clean); m != nil {
		idStr = m[1]
		hash = strings.TrimSpace(query.Get("hash"))
	} else {
		return domain.Link{}, fmt.Errorf("%w: unrecognised path %q", domain.ErrInvalidLink, clean)
	}

	if !validHashRegex.MatchString(hash) {
		return domain.Link{}, fmt.Errorf("%w: bad hash", domain.ErrInvalidLink)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return domain.Link{}, fmt.Errorf("%w: object id: %v", domain.ErrInvalidLink, err)
	}

	return domain.Link{ObjectID: id, SecretHash: hash}, nil
}

// Format returns the hash-first token for an object.
func Format(objectID int64, hash string) string {
	return hash + strconv.FormatInt(objectID, 10)
}
