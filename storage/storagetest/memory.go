// Package storagetest provides an in-memory storage.ObjectStorage for tests.
package storagetest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"iter"
	"sort"
	"sync"
	"time"

	"objgate/apperrors"
	"objgate/storage"
)

var _ storage.ObjectStorage = (*Memory)(nil)

type memObj struct {
	data        []byte
	size        int64
	contentType string
	etag        string
	modified    time.Time
}

// Memory keeps buckets and objects in maps and counts bootstrap calls
type Memory struct {
	// Discard drops object bodies after counting them, for streaming tests
	Discard bool
	// Failures injected per operation name ("ping", "put", "get", "list", ...)
	Failures map[string]error

	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string]memObj
	Policies map[string][]string
	Expiry   map[string]int
	Calls    map[string]int
}

// NewMemory returns an empty store
func NewMemory() *Memory {
	return &Memory{
		Failures: map[string]error{},
		buckets:  map[string]bool{},
		objects:  map[string]memObj{},
		Policies: map[string][]string{},
		Expiry:   map[string]int{},
		Calls:    map[string]int{},
	}
}

// AddBucket pre-creates a bucket without counting a create call
func (m *Memory) AddBucket(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[name] = true
}

// CallCount returns how often op was invoked
func (m *Memory) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[op]
}

// Bytes returns the stored body of bucket/key
func (m *Memory) Bytes(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[bucket+"/"+key]
	return o.data, ok
}

func (m *Memory) enter(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[op]++
	return m.Failures[op]
}

func (m *Memory) Ping(context.Context) error {
	return m.enter("ping")
}

func (m *Memory) BucketExists(_ context.Context, bucket string) (bool, error) {
	if err := m.enter("bucket_exists"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[bucket], nil
}

func (m *Memory) CreateBucket(_ context.Context, bucket string) error {
	if err := m.enter("create_bucket"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	return nil
}

func (m *Memory) SetBucketPolicy(_ context.Context, bucket, policy string) error {
	if err := m.enter("set_policy"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Policies[bucket] = append(m.Policies[bucket], policy)
	return nil
}

func (m *Memory) SetBucketExpiry(_ context.Context, bucket string, days int) error {
	if err := m.enter("set_lifecycle"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Expiry[bucket] = days
	return nil
}

func (m *Memory) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, contentType string) (*storage.ObjectInfo, error) {
	if err := m.enter("put"); err != nil {
		return nil, err
	}
	if err := m.requireBucket(bucket); err != nil {
		return nil, err
	}

	h := md5.New()
	var buf bytes.Buffer
	var sink io.Writer = io.MultiWriter(h, &buf)
	if m.Discard {
		sink = h
	}
	n, err := io.Copy(sink, r)
	if err != nil {
		return nil, apperrors.StorageWrite(err, "put object "+key)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj := memObj{
		data:        buf.Bytes(),
		size:        n,
		contentType: contentType,
		etag:        hex.EncodeToString(h.Sum(nil)),
		modified:    time.Now().UTC(),
	}
	m.mu.Lock()
	m.objects[bucket+"/"+key] = obj
	m.mu.Unlock()

	info := obj.info(key)
	return &info, nil
}

func (m *Memory) GetObject(_ context.Context, bucket, key string) (*storage.Object, error) {
	if err := m.enter("get"); err != nil {
		return nil, err
	}
	obj, err := m.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return &storage.Object{
		ReadCloser: io.NopCloser(bytes.NewReader(obj.data)),
		Info:       obj.info(key),
	}, nil
}

func (m *Memory) StatObject(_ context.Context, bucket, key string) (*storage.ObjectInfo, error) {
	if err := m.enter("stat"); err != nil {
		return nil, err
	}
	obj, err := m.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := obj.info(key)
	return &info, nil
}

// ListObjects yields keys in lexicographic order, like S3
func (m *Memory) ListObjects(_ context.Context, bucket string) iter.Seq2[storage.ObjectInfo, error] {
	return func(yield func(storage.ObjectInfo, error) bool) {
		if err := m.enter("list"); err != nil {
			yield(storage.ObjectInfo{}, err)
			return
		}
		if err := m.requireBucket(bucket); err != nil {
			yield(storage.ObjectInfo{}, err)
			return
		}

		m.mu.Lock()
		prefix := bucket + "/"
		var infos []storage.ObjectInfo
		for k, o := range m.objects {
			if len(k) > len(prefix) && k[:len(prefix)] == prefix {
				infos = append(infos, o.info(k[len(prefix):]))
			}
		}
		m.mu.Unlock()

		sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
	}
}

func (m *Memory) requireBucket(bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.buckets[bucket] {
		return apperrors.StorageRead(errors.New("NoSuchBucket"), "bucket "+bucket)
	}
	return nil
}

func (m *Memory) lookup(bucket, key string) (memObj, error) {
	if err := m.requireBucket(bucket); err != nil {
		return memObj{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[bucket+"/"+key]
	if !ok {
		return memObj{}, apperrors.NotFound(key)
	}
	return obj, nil
}

func (o memObj) info(key string) storage.ObjectInfo {
	return storage.ObjectInfo{
		Key:          key,
		Size:         o.size,
		ContentType:  o.contentType,
		ETag:         o.etag,
		LastModified: o.modified,
	}
}
