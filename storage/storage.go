// Package storage keeps rendered chart images. Artifacts are write-once:
// a name that already exists gets a random suffix instead of being
// overwritten.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no artifact has the requested name.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidName rejects names that are not a single path element.
var ErrInvalidName = errors.New("invalid artifact name")

// Store saves and streams chart artifacts by file name.
type Store interface {
	// Save writes data under name, or under a suffixed variant of name
	// when it is taken, and returns the name actually used.
	Save(ctx context.Context, name string, data []byte) (string, error)
	// Open streams an artifact along with its size in bytes.
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
}

// ValidName reports whether name is a plain file name.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return !strings.HasPrefix(name, ".")
}

// withSuffix inserts a short random tag before the extension.
func withSuffix(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + uuid.NewString()[:8] + ext
}

// maxAttempts bounds the number of suffixed names tried on collision.
const maxAttempts = 5
