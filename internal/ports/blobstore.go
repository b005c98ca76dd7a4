package ports

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned when the requested blob does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore abstracts the remote side of snapshot sync: a keyed byte store
// backed by a user-provided location (typically a directory kept in sync by
// an external tool). Implementations must make Put atomic so a reader never
// observes a half-written snapshot.
type BlobStore interface {
	// Get returns the blob stored under key, or ErrBlobNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous content atomically.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes the blob stored under key. Deleting a missing blob is
	// not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}
