package repositories

import "context"

// BlobStore persists uploaded document bytes under an opaque storage
// reference, so a retry can re-process a failed upload without re-upload.
type BlobStore interface {
	Put(ctx context.Context, ref string, content []byte) error
	Get(ctx context.Context, ref string) ([]byte, error)
}
