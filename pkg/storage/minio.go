// Package storage archives raw uploaded documents in object storage so the
// ingestion worker can read them back for extraction.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"wattson/internal/config"
	"wattson/pkg/log"
)

// MinioClient is the global MinIO client.
var MinioClient *minio.Client

// InitMinIO connects the client and ensures the archive bucket exists.
func InitMinIO(cfg config.MinIOConfig) {
	var err error
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("failed to initialize MinIO client", err)
	}

	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("failed to check MinIO bucket", err)
	}
	if !exists {
		if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("failed to create MinIO bucket", err)
		}
		log.Infof("created bucket '%s'", cfg.BucketName)
	}

	log.Info("MinIO client initialized successfully")
}

// ArchiveObjectName returns the archive key for an uploaded document.
func ArchiveObjectName(docName string) string {
	return fmt.Sprintf("raw/%s", docName)
}

// PutDocument stores the raw bytes of an uploaded document.
func PutDocument(ctx context.Context, bucket, docName string, r io.Reader, size int64, contentType string) error {
	_, err := MinioClient.PutObject(ctx, bucket, ArchiveObjectName(docName), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("archive document %q: %w", docName, err)
	}
	return nil
}

// GetDocument opens the archived raw bytes of a document.
func GetDocument(ctx context.Context, bucket, docName string) (io.ReadCloser, error) {
	obj, err := MinioClient.GetObject(ctx, bucket, ArchiveObjectName(docName), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch archived document %q: %w", docName, err)
	}
	return obj, nil
}
