package objects

import (
	"context"
	"crypto/rand"
	"io"
	"log"
	"time"

	"objgate/apperrors"
	"objgate/storage"

	"github.com/google/uuid"
)

// Service handles object operations against the configured bucket
type Service struct {
	storage storage.ObjectStorage
	bucket  string
	logger  *log.Logger
	newKey  func() string
}

// NewService creates a new object service
func NewService(store storage.ObjectStorage, bucket string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[OBJECTS] ", log.LstdFlags)
	}

	return &Service{
		storage: store,
		bucket:  bucket,
		logger:  logger,
		newKey:  randomKey,
	}
}

// randomKey returns 128 random bits in the familiar 8-4-4-4-12 layout.
// The version and variant bits are left random, so this is not an RFC 4122 UUID.
func randomKey() string {
	var id uuid.UUID
	_, _ = rand.Read(id[:])
	return id.String()
}

// Bucket returns the bucket name
func (s *Service) Bucket() string {
	return s.bucket
}

// Upload streams r into a new object under a freshly generated key. On
// failure the key is simply dropped.
func (s *Service) Upload(ctx context.Context, r io.Reader, size int64, contentType string) (*storage.ObjectInfo, error) {
	key := s.newKey()
	s.logger.Printf("Uploading object %s, declared size: %d bytes", key, size)

	start := time.Now()
	info, err := s.storage.PutObject(ctx, s.bucket, key, r, size, contentType)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.StorageWrite(err, "put object "+key)
		}
		return nil, err
	}

	if size >= 0 && info.Size != size {
		s.logger.Printf("WARNING: Size mismatch for object %s. Expected: %d bytes, Got: %d bytes", key, size, info.Size)
	}
	s.logger.Printf("Successfully uploaded object %s, size: %d bytes, took: %v", key, info.Size, time.Since(start))

	info.Key = key
	return info, nil
}

// Open returns a stream of the object stored under key
func (s *Service) Open(ctx context.Context, key string) (*storage.Object, error) {
	obj, err := s.storage.GetObject(ctx, s.bucket, key)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.StorageRead(err, "get object "+key)
		}
		return nil, err
	}
	return obj, nil
}

// Stat returns metadata for the object stored under key
func (s *Service) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	info, err := s.storage.StatObject(ctx, s.bucket, key)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.StorageRead(err, "stat object "+key)
		}
		return nil, err
	}
	return info, nil
}

// List drains the full bucket listing. There is no pagination: the whole
// bucket is walked on every call.
func (s *Service) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo
	for info, err := range s.storage.ListObjects(ctx, s.bucket) {
		if err != nil {
			if apperrors.CodeOf(err) == "" {
				err = apperrors.StorageRead(err, "list objects")
			}
			return nil, err
		}
		objects = append(objects, info)
	}
	return objects, nil
}
