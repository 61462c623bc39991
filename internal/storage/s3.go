package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/juridico/conciliacao-api/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Storage stores documents in an S3-compatible bucket
type S3Storage struct {
	raw       *minio.Client
	bucket    string
	publicURL string
}

// NewS3Storage creates an S3 storage from the storage configuration
func NewS3Storage(cfg config.StorageConfig) (*S3Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" || strings.HasPrefix(publicURL, "/") {
		scheme := "http"
		if cfg.S3UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.S3Endpoint, cfg.S3Bucket)
	}

	return &S3Storage{
		raw:       client,
		bucket:    cfg.S3Bucket,
		publicURL: publicURL,
	}, nil
}

// EnsureBucket creates the bucket when missing
func (s *S3Storage) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.raw.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q failed: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.raw.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q failed: %w", s.bucket, err)
	}
	return nil
}

// Upload puts the object under subDir/YYYY/MM and returns its URL
func (s *S3Storage) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType, subDir string) (string, error) {
	key := objectKey(subDir, filename, time.Now())

	_, err := s.raw.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %q failed: %w", key, err)
	}

	return s.publicURL + "/" + key, nil
}
