package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"report-service/config"

	"github.com/apex/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MediaStore uploads report media to an S3-compatible object store and
// hands back public URLs.
type MediaStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMediaStore(cfg *config.Config) (*MediaStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	publicURL := cfg.MinioPublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, cfg.MinioEndpoint)
	}

	return &MediaStore{
		client:    client,
		bucket:    cfg.MinioBucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// EnsureBucket creates the media bucket if it does not exist yet.
func (m *MediaStore) EnsureBucket(ctx context.Context) error {
	err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := m.client.BucketExists(ctx, m.bucket)
		if errBucketExists == nil && exists {
			log.Infof("Bucket %s already exists", m.bucket)
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	log.Infof("Created bucket %s", m.bucket)
	return nil
}

// Upload stores one object and returns its public URL.
func (m *MediaStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	return fmt.Sprintf("%s/%s/%s", m.publicURL, m.bucket, objectName), nil
}
