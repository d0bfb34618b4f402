package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Storage struct {
	client       *miniogo.Client
	uploadBucket string
	outputBucket string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UploadBucket string
	OutputBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	if cfg.UploadBucket == "" || cfg.OutputBucket == "" {
		return nil, fmt.Errorf("minio: upload and output buckets are required")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:       client,
		uploadBucket: cfg.UploadBucket,
		outputBucket: cfg.OutputBucket,
	}, nil
}

// EnsureBuckets creates the upload and output buckets when missing. Both may
// be the same bucket.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	buckets := []string{s.uploadBucket}
	if s.outputBucket != s.uploadBucket {
		buckets = append(buckets, s.outputBucket)
	}
	for _, bucket := range buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) DownloadVideo(ctx context.Context, objectKey string, destPath string) error {
	if err := s.client.FGetObject(ctx, s.uploadBucket, objectKey, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s/%s: %w", s.uploadBucket, objectKey, err)
	}
	return nil
}

func (s *Storage) UploadVideo(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.outputBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: ContentType(objectKey),
	})
	if err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	return nil
}

// ContentType maps an output key's container extension to its MIME type.
func ContentType(objectKey string) string {
	switch strings.ToLower(path.Ext(objectKey)) {
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}
