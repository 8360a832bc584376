package fsio

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// MinioConfig configures an S3-compatible output bucket.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// Validate checks the required fields.
func (c MinioConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Endpoint) == "":
		return ferrors.ConfigError("minio endpoint is required").Build()
	case strings.Contains(c.Endpoint, "://"):
		return ferrors.ConfigError(fmt.Sprintf("minio endpoint must not include scheme: %q", c.Endpoint)).Build()
	case strings.TrimSpace(c.AccessKey) == "":
		return ferrors.ConfigError("minio access key is required").Build()
	case strings.TrimSpace(c.SecretKey) == "":
		return ferrors.ConfigError("minio secret key is required").Build()
	case strings.TrimSpace(c.Bucket) == "":
		return ferrors.ConfigError("minio bucket is required").Build()
	}
	return nil
}

// MinioWriter uploads outputs as objects.
type MinioWriter struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioWriter creates a client for cfg. No request is made until the first write.
func NewMinioWriter(cfg MinioConfig) (*MinioWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to create minio client").Build()
	}
	return &MinioWriter{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (w *MinioWriter) EnsureBucket(ctx context.Context, region string) error {
	exists, err := w.client.BucketExists(ctx, w.bucket)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to check output bucket").
			WithContext("bucket", w.bucket).
			Retryable().
			Build()
	}
	if exists {
		return nil
	}
	if err := w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to create output bucket").
			WithContext("bucket", w.bucket).
			Build()
	}
	return nil
}

// WriteFile uploads data under the configured prefix.
func (w *MinioWriter) WriteFile(ctx context.Context, name string, data []byte) error {
	key, err := w.objectKey(name)
	if err != nil {
		return err
	}
	opts := minio.PutObjectOptions{ContentType: contentType(key)}
	if _, err := w.client.PutObject(ctx, w.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to upload output").
			WithContext("bucket", w.bucket).
			WithContext("key", key).
			Retryable().
			Build()
	}
	return nil
}

// Location returns an s3 URI for name.
func (w *MinioWriter) Location(name string) string {
	key, err := w.objectKey(name)
	if err != nil {
		key = name
	}
	return "s3://" + w.bucket + "/" + key
}

func (w *MinioWriter) objectKey(name string) (string, error) {
	rel, err := cleanRelative(name)
	if err != nil {
		return "", err
	}
	if w.prefix == "" {
		return rel, nil
	}
	return path.Join(w.prefix, rel), nil
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
