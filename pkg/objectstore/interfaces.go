package objectstore

import (
	"context"
	"io"
	"time"
)

// Provider identifies a storage backend implementation.
type Provider string

const (
	ProviderS3 Provider = "s3"
)

// Store is the interface every object storage backend must implement.
// Keys are bucket-scoped; the bucket itself is fixed at construction time.
type Store interface {
	// Provider returns the backend type.
	Provider() Provider

	Put(ctx context.Context, key string, reader io.Reader, size int64, opts ...PutOption) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (*ObjectMeta, error)
	List(ctx context.Context, prefix string, opts ...ListOption) ([]ObjectInfo, error)
}

// Multipart is implemented by backends that support multipart uploads.
// Re-sending a part with an unchanged part number overwrites it cleanly, so
// part uploads are safe to retry.
type Multipart interface {
	CreateUpload(ctx context.Context, key string, opts ...PutOption) (uploadID string, err error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, reader io.Reader, size int64) (etag string, err error)
	CompleteUpload(ctx context.Context, key, uploadID string, parts []Part) (*ObjectMeta, error)
	AbortUpload(ctx context.Context, key, uploadID string) error
}

// Presigner is implemented by backends that can mint time-limited retrieval
// URLs. Signing is local; no network round trip is made.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Part is the receipt for one uploaded part of a multipart upload.
type Part struct {
	Number int32
	ETag   string
	Size   int64
}

// ObjectInfo describes one entry of a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	IsDir        bool
}

// ObjectMeta is the full metadata of a stored object.
type ObjectMeta struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}
