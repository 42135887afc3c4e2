// Package blobstore abstracts where finished feature banks are published.
//
// A BlobStore holds immutable named blobs. Local builds publish to a
// directory; remote builds publish to S3-compatible object storage. Blobs
// are written through a WritableBlob and become visible atomically on
// Close, so readers never observe a half-uploaded bank.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing and retrieving immutable blobs.
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new blob for streaming writes. The blob becomes
	// visible under name only after a successful Close.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.ReaderAt
	io.Closer

	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a streaming write handle. Close commits the blob;
// Abort discards everything written so far.
type WritableBlob interface {
	io.WriteCloser

	// Abort discards the blob. Safe to call after Close, in which case
	// it is a no-op.
	Abort() error
}

// Mappable is an optional interface for Blobs that expose their contents
// as a byte slice without copying.
type Mappable interface {
	// Bytes returns the underlying byte slice. The slice is valid until
	// the Blob is closed.
	Bytes() ([]byte, error)
}
