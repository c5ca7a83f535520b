package bootstrap

import (
	"context"
	"fmt"
	"log"

	"objgate/config"
	"objgate/storage"
)

// ClientFactory constructs the storage adapter from validated settings
type ClientFactory func(cfg config.StorageConfig) (storage.ObjectStorage, error)

// Options controls a bootstrap run
type Options struct {
	Storage            config.StorageConfig
	NewClient          ClientFactory
	VerifyConnectivity bool
	// ObjectExpiryDays installs a lifecycle rule on a newly created bucket. 0 disables it.
	ObjectExpiryDays int
	Logger           *log.Logger
}

// Run prepares the storage backend before the HTTP listener starts:
// validate settings, build the client, optionally ping, then make sure the
// bucket exists with the anonymous-read policy. An existing bucket is left
// untouched so manually configured policies survive restarts. Any failure
// is returned unretried; callers are expected to exit.
func Run(ctx context.Context, opts Options) (storage.ObjectStorage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[BOOTSTRAP] ", log.LstdFlags)
	}
	cfg := opts.Storage

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Printf("Connecting to storage backend (%s, tls=%t)...", cfg.Endpoint(), cfg.UseTLS)
	client, err := opts.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if opts.VerifyConnectivity {
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
		logger.Printf("Storage backend reachable")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Printf("Bucket %s already exists, leaving its policy unchanged", cfg.Bucket)
		return client, nil
	}

	if err := client.CreateBucket(ctx, cfg.Bucket); err != nil {
		return nil, err
	}
	logger.Printf("Created bucket %s", cfg.Bucket)

	doc, err := storage.PublicReadPolicyJSON(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("build policy for %s: %w", cfg.Bucket, err)
	}
	if err := client.SetBucketPolicy(ctx, cfg.Bucket, doc); err != nil {
		return nil, err
	}
	logger.Printf("Assigned anonymous-read policy to bucket %s", cfg.Bucket)

	if opts.ObjectExpiryDays > 0 {
		if err := client.SetBucketExpiry(ctx, cfg.Bucket, opts.ObjectExpiryDays); err != nil {
			return nil, err
		}
		logger.Printf("Objects in %s expire after %d days", cfg.Bucket, opts.ObjectExpiryDays)
	}

	return client, nil
}
