// Package minio implements docmind.ArtifactStore on S3-compatible object
// storage (MinIO, RustFS, AWS S3).
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/artifact"
)

// Config holds the connection settings.
type Config struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // object key prefix, e.g. "results/"
	UseSSL    bool
}

// Store puts artifacts as objects in one bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// New connects to the endpoint and creates the bucket if it does not exist.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = docmind.NopLogger()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio: create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("minio: bucket created", "bucket", cfg.Bucket)
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// Name returns "minio".
func (s *Store) Name() string { return "minio" }

func (s *Store) key(id string) string {
	return path.Join(s.prefix, artifact.Name(id))
}

// Put uploads data and returns "s3://bucket/key".
func (s *Store) Put(ctx context.Context, id string, data []byte) (string, error) {
	if err := artifact.CheckID(id); err != nil {
		return "", err
	}
	key := s.key(id)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return "", fmt.Errorf("minio: upload %s: %w", key, err)
	}
	s.logger.Debug("minio: artifact stored", "bucket", s.bucket, "key", key, "etag", info.ETag, "bytes", info.Size)
	return "s3://" + s.bucket + "/" + key, nil
}

// Open returns the object body. A missing artifact yields an error matching
// os.ErrNotExist.
func (s *Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := artifact.CheckID(id); err != nil {
		return nil, err
	}
	key := s.key(id)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get %s: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("minio: artifact %s: %w", id, os.ErrNotExist)
		}
		return nil, fmt.Errorf("minio: stat %s: %w", key, err)
	}
	return obj, nil
}

var _ docmind.ArtifactStore = (*Store)(nil)
