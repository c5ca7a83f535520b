package storage

import (
	"context"
	"io"
	"iter"
	"time"
)

// ObjectStorage is the capability surface the service needs from an
// S3-compatible backend. Implementations translate backend errors into
// apperrors codes.
type ObjectStorage interface {
	// Ping performs a lightweight authenticated round trip to the backend.
	Ping(ctx context.Context) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	// CreateBucket treats "already exists" answers from the backend as success.
	CreateBucket(ctx context.Context, bucket string) error
	SetBucketPolicy(ctx context.Context, bucket, policy string) error
	// SetBucketExpiry installs a lifecycle rule deleting objects after days.
	SetBucketExpiry(ctx context.Context, bucket string, days int) error

	// PutObject streams r into bucket/key. size is -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)
	// GetObject returns a stream of the object. The caller must close it.
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	// ListObjects returns a lazy, one-shot listing in backend order. An error
	// yielded mid-sequence ends the sequence.
	ListObjects(ctx context.Context, bucket string) iter.Seq2[ObjectInfo, error]
}

// ObjectInfo contains information about a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Object is an open object stream together with its metadata
type Object struct {
	io.ReadCloser
	Info ObjectInfo
}
