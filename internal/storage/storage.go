// Package storage defines the blob store abstraction shared by the local,
// in-memory, and Google Cloud Storage backends.
package storage

import (
	"context"
	"io"
)

// BlobStore writes an object and returns a URI identifying where it landed.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}
