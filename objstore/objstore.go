// Package objstore defines the remote object store contract the transfer
// engine works against, plus an in-memory implementation for tests and
// local-only runs.
//
// The engine never constructs credentials itself: a Store arrives already
// authenticated. Implementations must be safe for concurrent use, since every
// worker in a batch shares one Store.
package objstore

import (
	"context"
	"io"
	"time"
)

// Object represents a stored object with its basic metadata.
type Object struct {
	// Key is the object key (path within the container)
	Key string

	// Size is the object size in bytes
	Size int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// ETag is the store's entity tag for the object
	ETag string
}

// Store is the byte-stream capability the transfer engine requires of a
// remote store: list by prefix, read an object, write an object, and attach
// tags to a written object.
type Store interface {
	// List returns every object in container whose key starts with prefix,
	// in the store's native listing order (typically lexicographic by key).
	List(ctx context.Context, container, prefix string) ([]Object, error)

	// Get opens an object for reading. The second return value is the
	// object's size when known, -1 otherwise. The caller owns the closer.
	Get(ctx context.Context, container, key string) (io.ReadCloser, int64, error)

	// Put writes an object from reader. Size may be -1 when unknown.
	Put(ctx context.Context, container, key string, reader io.Reader, size int64, contentType string) error

	// SetTags attaches key/value tags to an existing object, replacing any
	// previous tag set.
	SetTags(ctx context.Context, container, key string, tags map[string]string) error
}
