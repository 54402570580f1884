// Package blobstore stores opaque file payloads under store-generated references.
package blobstore

import (
	"context"
	"io"

	"github.com/Laisky/errors/v2"
)

// ErrBlobNotFound is returned by Get when ref names no blob.
var ErrBlobNotFound = errors.New("blob not found")

// PutOption describes the payload being written.
// Size is the declared length, zero or negative when unknown.
type PutOption struct {
	Filename    string
	ContentType string
	Size        int64
}

// Store is the blob capability consumed by the file service.
//
// Implementations generate a fresh reference on every Put, so two writes never
// share a ref. Delete is idempotent.
type Store interface {
	Put(ctx context.Context, r io.Reader, opt PutOption) (ref string, err error)
	Exists(ctx context.Context, ref string) (bool, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	// ValidRef checks that ref has the identifier format this store issues.
	ValidRef(ref string) bool
	Close(ctx context.Context) error
}
