// Package domain holds the types shared by the delivery gateway packages.
package domain

// SecureHashLength is the number of characters of an object's unique id that
// a link must carry.
const SecureHashLength = 6

// Link is a decoded link token.
type Link struct {
	ObjectID   int64
	SecretHash string
}

// ObjectMetadata describes a stored object as reported by a backend session.
type ObjectMetadata struct {
	UniqueID string
	FileSize int64
	MimeType string
	FileName string

	// StorageKey locates the bytes inside the session's storage backend.
	StorageKey string
}

// HashMatches reports whether hash equals the first SecureHashLength
// characters of the unique id.
func (m *ObjectMetadata) HashMatches(hash string) bool {
	prefix := m.UniqueID
	if len(prefix) > SecureHashLength {
		prefix = prefix[:SecureHashLength]
	}
	return hash != "" && prefix == hash
}

// StreamRequest is the per-request delivery state. It is never persisted.
type StreamRequest struct {
	Link
	RangeHeader string
	SessionID   string
}
