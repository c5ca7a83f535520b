package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"net"
	"sync/atomic"
	"time"

	"objgate/apperrors"
	"objgate/config"
	"objgate/metrics"
	"objgate/tracing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPartSize bounds the memory a single upload may hold
const DefaultPartSize = 16 << 20

// Options tunes a MinioStorage beyond its connection parameters
type Options struct {
	// PartSize is the multipart chunk size. It caps per-upload memory.
	PartSize uint64
	Logger   *log.Logger
	Observer metrics.StorageObserver
}

// MinioStorage implements ObjectStorage on top of minio-go
type MinioStorage struct {
	client   *minio.Client
	partSize uint64
	logger   *log.Logger
	observer metrics.StorageObserver
	tracer   trace.Tracer
}

// NewMinioStorage creates a client for cfg. It does not contact the backend.
func NewMinioStorage(cfg config.StorageConfig, opts Options) (*MinioStorage, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[STORAGE] ", log.LstdFlags)
	}
	if opts.Observer == nil {
		opts.Observer = metrics.NopObserver
	}
	if opts.PartSize == 0 {
		opts.PartSize = DefaultPartSize
	}

	client, err := minio.New(cfg.Endpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
	})
	if err != nil {
		return nil, apperrors.Configuration("host", fmt.Sprintf("create storage client for %s: %v", cfg.Endpoint(), err))
	}

	return &MinioStorage{
		client:   client,
		partSize: opts.PartSize,
		logger:   opts.Logger,
		observer: opts.Observer,
		tracer:   tracing.Tracer("storage"),
	}, nil
}

// Ping lists buckets. Any answer from the backend other than a credential
// rejection counts as reachable.
func (s *MinioStorage) Ping(ctx context.Context) (err error) {
	ctx, done := s.begin(ctx, "ping", "")
	defer func() { done(0, err) }()

	_, err = s.client.ListBuckets(ctx)
	if err == nil {
		return nil
	}
	switch errorCode(err) {
	case "AccessDenied":
		s.logger.Printf("Access key may not list buckets, treating backend as reachable")
		return nil
	case "InvalidAccessKeyId":
		return apperrors.Configuration("accessKey", fmt.Sprintf("rejected by backend: %v", err))
	case "SignatureDoesNotMatch":
		return apperrors.Configuration("secretKey", fmt.Sprintf("rejected by backend: %v", err))
	}
	return apperrors.Connectivity(err, "list buckets")
}

// BucketExists reports whether bucket exists
func (s *MinioStorage) BucketExists(ctx context.Context, bucket string) (exists bool, err error) {
	ctx, done := s.begin(ctx, "bucket_exists", bucket)
	defer func() { done(0, err) }()

	exists, err = s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, classify(err, "", apperrors.StorageRead, fmt.Sprintf("check bucket %s", bucket))
	}
	return exists, nil
}

// CreateBucket creates bucket
func (s *MinioStorage) CreateBucket(ctx context.Context, bucket string) (err error) {
	ctx, done := s.begin(ctx, "create_bucket", bucket)
	defer func() { done(0, err) }()

	err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	if err == nil {
		return nil
	}
	switch errorCode(err) {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		s.logger.Printf("Bucket %s was created concurrently, continuing", bucket)
		return nil
	}
	return classify(err, "", apperrors.StorageWrite, fmt.Sprintf("create bucket %s", bucket))
}

// SetBucketPolicy replaces the bucket policy with doc
func (s *MinioStorage) SetBucketPolicy(ctx context.Context, bucket, doc string) (err error) {
	ctx, done := s.begin(ctx, "set_policy", bucket)
	defer func() { done(0, err) }()

	if err = s.client.SetBucketPolicy(ctx, bucket, doc); err != nil {
		return classify(err, "", apperrors.StorageWrite, fmt.Sprintf("set policy on %s", bucket))
	}
	return nil
}

// SetBucketExpiry installs an expiration lifecycle rule
func (s *MinioStorage) SetBucketExpiry(ctx context.Context, bucket string, days int) (err error) {
	ctx, done := s.begin(ctx, "set_lifecycle", bucket)
	defer func() { done(0, err) }()

	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     "expire-rule",
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(days),
			},
		},
	}
	if err = s.client.SetBucketLifecycle(ctx, bucket, cfg); err != nil {
		return classify(err, "", apperrors.StorageWrite, fmt.Sprintf("set lifecycle on %s", bucket))
	}
	return nil
}

// PutObject streams r into the bucket. Bodies of unknown size go through
// multipart upload with the configured part size.
func (s *MinioStorage) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (_ *ObjectInfo, err error) {
	ctx, done := s.begin(ctx, "put", key)
	var written int64
	defer func() { done(written, err) }()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    s.partSize,
	})
	if err != nil {
		return nil, classify(err, "", apperrors.StorageWrite, fmt.Sprintf("put object %s", key))
	}
	written = info.Size

	return &ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  contentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// GetObject opens key for streaming. The object is stat'ed first so a
// missing key fails here rather than on the first read.
func (s *MinioStorage) GetObject(ctx context.Context, bucket, key string) (_ *Object, err error) {
	ctx, done := s.begin(ctx, "get", key)
	defer func() {
		if err != nil {
			done(0, err)
		}
	}()

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err, key, apperrors.StorageRead, fmt.Sprintf("get object %s", key))
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, classify(err, key, apperrors.StorageRead, fmt.Sprintf("get object %s", key))
	}

	return &Object{
		ReadCloser: &observedReader{rc: obj, done: done},
		Info:       toObjectInfo(stat),
	}, nil
}

// StatObject returns metadata for key
func (s *MinioStorage) StatObject(ctx context.Context, bucket, key string) (_ *ObjectInfo, err error) {
	ctx, done := s.begin(ctx, "stat", key)
	defer func() { done(0, err) }()

	stat, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, classify(err, key, apperrors.StorageRead, fmt.Sprintf("stat object %s", key))
	}
	info := toObjectInfo(stat)
	return &info, nil
}

// ListObjects lists every object in bucket. Stopping the iteration early
// cancels the underlying listing.
func (s *MinioStorage) ListObjects(ctx context.Context, bucket string) iter.Seq2[ObjectInfo, error] {
	var used atomic.Bool
	return func(yield func(ObjectInfo, error) bool) {
		if used.Swap(true) {
			yield(ObjectInfo{}, apperrors.StorageRead(errors.New("listing already consumed"), "list objects"))
			return
		}

		ctx, done := s.begin(ctx, "list", bucket)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch := s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true})
		count, err := yieldObjects(ch, yield)
		done(count, err)
	}
}

// yieldObjects forwards a minio listing channel to yield. It returns the
// number of objects yielded and the backend error that ended the listing.
func yieldObjects(ch <-chan minio.ObjectInfo, yield func(ObjectInfo, error) bool) (int64, error) {
	var count int64
	for obj := range ch {
		if obj.Err != nil {
			err := classify(obj.Err, "", apperrors.StorageRead, "list objects")
			yield(ObjectInfo{}, err)
			return count, err
		}
		count++
		if !yield(toObjectInfo(obj), nil) {
			return count, nil
		}
	}
	return count, nil
}

// begin opens a span and returns the function that closes it and records
// the observation.
func (s *MinioStorage) begin(ctx context.Context, op, target string) (context.Context, func(int64, error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "storage."+op, trace.WithSpanKind(trace.SpanKindClient))
	if target != "" {
		span.SetAttributes(attribute.String("storage.target", target))
	}
	return ctx, func(n int64, err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int64("storage.bytes", n))
		span.End()
		s.observer.Observe(op, n, err, time.Since(start))
	}
}

// observedReader finishes the get span when the stream is closed
type observedReader struct {
	rc   io.ReadCloser
	done func(int64, error)
	n    int64
	err  error
	once atomic.Bool
}

func (r *observedReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.n += int64(n)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}

func (r *observedReader) Close() error {
	err := r.rc.Close()
	if !r.once.Swap(true) {
		r.done(r.n, r.err)
	}
	return err
}

func toObjectInfo(info minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}
}

func errorCode(err error) string {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code
	}
	return ""
}

// classify maps a backend error onto the apperrors taxonomy. key is the
// object key a "no such key" answer refers to, empty when not applicable.
func classify(err error, key string, fallback func(error, string) error, msg string) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Connectivity(err, msg)
	}
	if key != "" {
		switch errorCode(err) {
		case "NoSuchKey", "NoSuchObject":
			return apperrors.NotFound(key)
		}
	}
	return fallback(err, msg)
}
