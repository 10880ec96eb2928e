package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL replaces the endpoint in returned links, e.g. a CDN host.
	PublicURL string
}

// MinioUploader writes objects to an S3-compatible bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinioUploader connects and creates the bucket if it does not exist.
func NewMinioUploader(ctx context.Context, cfg MinioConfig) (*MinioUploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: failed to create bucket: %w", err)
		}
	}

	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinioUploader{client: client, bucket: cfg.Bucket, base: base}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key := strings.TrimLeft(input.Key, "/")
	if key == "" {
		return nil, errors.New("storage: object key is required")
	}

	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(input.Body), int64(len(input.Body)), minio.PutObjectOptions{
		ContentType:  input.ContentType,
		CacheControl: "public,max-age=31536000,immutable",
	})
	if err != nil {
		return nil, fmt.Errorf("storage: upload failed: %w", err)
	}
	return &UploadResult{URL: u.base + "/" + key}, nil
}
