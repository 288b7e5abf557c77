package evidence

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rcliao/milestone-tracker/internal/model"
)

// MinioConfig addresses an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioUploader writes captures to S3-compatible object storage.
type MinioUploader struct {
	client *minio.Client
	bucket string
}

// NewMinioUploader creates an uploader. The region defaults to us-east-1 so
// no bucket-location lookup is made.
func NewMinioUploader(cfg MinioConfig) (*MinioUploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, model.NewError(model.KindInvalidInput, nil, "evidence endpoint and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioUploader{client: client, bucket: cfg.Bucket}, nil
}

// Upload puts the file and returns an s3:// reference.
func (u *MinioUploader) Upload(ctx context.Context, key, path string, meta map[string]string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", model.NewError(model.KindInvalidInput, err, "open capture")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", model.NewError(model.KindInvalidInput, err, "stat capture")
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = u.client.PutObject(ctx, u.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return "", model.NewError(model.KindServiceUnavailable, err, "upload %s", key)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
