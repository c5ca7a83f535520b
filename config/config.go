package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"objgate/apperrors"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7/pkg/s3utils"
	"gopkg.in/yaml.v3"
)

// DefaultStoragePort is used when STORAGE_PORT is unset
const DefaultStoragePort = 9000

// Config holds all application configuration
type Config struct {
	Port               string        `yaml:"port"`
	CorsOrigin         string        `yaml:"corsOrigin"`
	PublicBaseURL      string        `yaml:"publicBaseURL"`
	Storage            StorageConfig `yaml:"storage"`
	MaxUploadMB        int64         `yaml:"maxUploadMB"`      // 0 = unlimited
	UploadPartSizeMB   int64         `yaml:"uploadPartSizeMB"` // multipart part size for bodies of unknown length
	UploadRateLimit    int           `yaml:"uploadRateLimit"`  // uploads per minute per client IP, 0 = off
	RequestTimeout     time.Duration `yaml:"requestTimeout"`   // 0 = no deadline
	ReadTimeout        time.Duration `yaml:"readTimeout"`
	WriteTimeout       time.Duration `yaml:"writeTimeout"`
	ObjectExpiryDays   int           `yaml:"objectExpiryDays"` // applied only when the bucket is created
	VerifyConnectivity bool          `yaml:"verifyConnectivity"`
	MetricsEnabled     bool          `yaml:"metricsEnabled"`
	Tracing            TracingConfig `yaml:"tracing"`
	LogFile            string        `yaml:"logFile"`
}

// StorageConfig holds the connection parameters of the object store
type StorageConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseTLS    bool   `yaml:"useTLS"`
	Bucket    string `yaml:"bucket"`
}

// TracingConfig controls OTLP export
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Protocol    string  `yaml:"protocol"` // "grpc" (default) or "http"
	SampleRatio float64 `yaml:"sampleRatio"`
}

// Endpoint returns host:port as expected by the storage client
func (s StorageConfig) Endpoint() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate reports the first missing or invalid field. A client must not be
// constructed from a StorageConfig that fails validation.
func (s StorageConfig) Validate() error {
	switch {
	case strings.TrimSpace(s.Host) == "":
		return apperrors.Configuration("host", "missing required setting STORAGE_HOST")
	case s.Port <= 0 || s.Port > 65535:
		return apperrors.Configuration("port", fmt.Sprintf("STORAGE_PORT out of range: %d", s.Port))
	case s.AccessKey == "":
		return apperrors.Configuration("accessKey", "missing required setting STORAGE_ACCESS_KEY")
	case s.SecretKey == "":
		return apperrors.Configuration("secretKey", "missing required setting STORAGE_SECRET_KEY")
	case strings.TrimSpace(s.Bucket) == "":
		return apperrors.Configuration("bucket", "missing required setting STORAGE_BUCKET")
	}
	if err := s3utils.CheckValidBucketNameStrict(s.Bucket); err != nil {
		return apperrors.Configuration("bucket", fmt.Sprintf("STORAGE_BUCKET %q: %v", s.Bucket, err))
	}
	return nil
}

// Default returns the configuration used before files and env are applied
func Default() *Config {
	return &Config{
		Port:       "3000",
		CorsOrigin: "*",
		Storage: StorageConfig{
			Port: DefaultStoragePort,
		},
		UploadPartSizeMB:   16,
		VerifyConnectivity: true,
		MetricsEnabled:     true,
		Tracing: TracingConfig{
			Protocol:    "grpc",
			SampleRatio: 1.0,
		},
	}
}

// Load configuration from .env, an optional YAML file named by CONFIG_FILE,
// and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Configuration("CONFIG_FILE", fmt.Sprintf("read %s: %v", path, err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Configuration("CONFIG_FILE", fmt.Sprintf("parse %s: %v", path, err))
		}
	}

	env := &envReader{}
	env.str("PORT", &cfg.Port)
	env.str("CORS_ORIGIN", &cfg.CorsOrigin)
	env.str("PUBLIC_BASE_URL", &cfg.PublicBaseURL)

	env.str("STORAGE_HOST", &cfg.Storage.Host)
	env.integer("STORAGE_PORT", &cfg.Storage.Port)
	env.str("STORAGE_ACCESS_KEY", &cfg.Storage.AccessKey)
	env.str("STORAGE_SECRET_KEY", &cfg.Storage.SecretKey)
	env.boolean("STORAGE_USE_TLS", &cfg.Storage.UseTLS)
	env.str("STORAGE_BUCKET", &cfg.Storage.Bucket)

	env.int64("MAX_UPLOAD_MB", &cfg.MaxUploadMB)
	env.int64("UPLOAD_PART_SIZE_MB", &cfg.UploadPartSizeMB)
	env.integer("UPLOAD_RATE_LIMIT", &cfg.UploadRateLimit)
	env.duration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	env.duration("READ_TIMEOUT", &cfg.ReadTimeout)
	env.duration("WRITE_TIMEOUT", &cfg.WriteTimeout)
	env.integer("OBJECT_EXPIRY_DAYS", &cfg.ObjectExpiryDays)
	env.boolean("VERIFY_CONNECTIVITY", &cfg.VerifyConnectivity)
	env.boolean("METRICS_ENABLED", &cfg.MetricsEnabled)

	env.boolean("TRACING_ENABLED", &cfg.Tracing.Enabled)
	env.str("TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	env.str("TRACING_PROTOCOL", &cfg.Tracing.Protocol)
	env.float("TRACING_SAMPLE_RATIO", &cfg.Tracing.SampleRatio)

	env.str("LOG_FILE", &cfg.LogFile)

	if env.err != nil {
		return nil, env.err
	}

	if cfg.UploadPartSizeMB < 5 {
		// S3 rejects multipart parts below 5 MiB
		return nil, apperrors.Configuration("UPLOAD_PART_SIZE_MB", "must be at least 5")
	}

	return cfg, nil
}

// envReader applies set environment variables onto config fields and keeps
// the first parse failure.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (r *envReader) fail(key, value string, err error) {
	r.err = apperrors.Configuration(key, fmt.Sprintf("invalid value %q: %v", value, err))
}

func (r *envReader) str(key string, dst *string) {
	if value, ok := r.lookup(key); ok {
		*dst = value
	}
}

func (r *envReader) integer(key string, dst *int) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return
	}
	*dst = n
}

func (r *envReader) int64(key string, dst *int64) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, value, err)
		return
	}
	*dst = n
}

func (r *envReader) float(key string, dst *float64) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, value, err)
		return
	}
	*dst = f
}

func (r *envReader) boolean(key string, dst *bool) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return
	}
	*dst = b
}

func (r *envReader) duration(key string, dst *time.Duration) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return
	}
	*dst = d
}
