// Package objectstore stores opaque blobs by key. The S3 implementation is
// used in production; Memory backs tests and local development.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("objectstore: not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (Object, error)
	// Delete is idempotent; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type Object struct {
	Data        []byte
	ContentType string
}
