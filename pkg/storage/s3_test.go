package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "affiliations/abc/id.pdf", DocumentKey("abc", "id.pdf"))
	assert.Equal(t, "affiliations/abc/passwd", DocumentKey("abc", "../../etc/passwd"))
	assert.Equal(t, "affiliations/abc/", DocumentPrefix("abc"))
}

func TestDocumentContentType(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		ok   bool
	}{
		{"license.PDF", "application/pdf", true},
		{"photo.jpeg", "image/jpeg", true},
		{"scan.png", "image/png", true},
		{"clip.mp4", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		ct, ok := DocumentContentType(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.ct, ct, tt.name)
	}
}
