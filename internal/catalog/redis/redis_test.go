package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captain108/FileToLink-cap/internal/domain"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "object:42", objectKey(42))
}

func TestFromHash(t *testing.T) {
	m, err := fromHash(map[string]string{
		"unique_id":   "abc123XYZ",
		"file_size":   "5000",
		"mime_type":   "video/mp4",
		"file_name":   "clip.mp4",
		"storage_key": "objects/42",
	})
	require.NoError(t, err)
	assert.Equal(t, &domain.ObjectMetadata{
		UniqueID:   "abc123XYZ",
		FileSize:   5000,
		MimeType:   "video/mp4",
		FileName:   "clip.mp4",
		StorageKey: "objects/42",
	}, m)
}

func TestFromHashMissingSize(t *testing.T) {
	m, err := fromHash(map[string]string{"unique_id": "abc123"})
	require.NoError(t, err)
	assert.Zero(t, m.FileSize)
}

func TestFromHashBadSize(t *testing.T) {
	_, err := fromHash(map[string]string{"file_size": "lots"})
	assert.Error(t, err)
}

func TestToHashCarriesAllFields(t *testing.T) {
	h := toHash(&domain.ObjectMetadata{UniqueID: "u", FileSize: 1, MimeType: "m", FileName: "f", StorageKey: "k"})
	assert.Len(t, h, 5)
	assert.Equal(t, int64(1), h["file_size"])
}
