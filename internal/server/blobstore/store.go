// Package blobstore adapts object storage for the file lifecycle services.
// Keys are opaque strings; the adapter has no knowledge of file semantics.
package blobstore

import (
	"context"
	"time"
)

// PutOptions carries per-object settings for a Put.
type PutOptions struct {
	ContentType string
	// Metadata is attached to the stored object (e.g. uploader identity and
	// original filename).
	Metadata map[string]string
}

// Store is the blob storage contract consumed by the lifecycle services.
type Store interface {
	Put(ctx context.Context, key string, body []byte, opts PutOptions) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// SignedURL returns a time-bounded URL granting read access to the blob.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
