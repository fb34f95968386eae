package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveService keeps a copy of each deployed agent's redacted config
type ArchiveService interface {
	Store(ctx context.Context, agentID string, doc []byte) error
}

// ObjectStore is the part of the MinIO client the archive uses
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type minioArchive struct {
	store   ObjectStore
	bucket  string
	timeout time.Duration

	mu          sync.Mutex
	bucketReady bool
}

// NewMinioClient connects to a MinIO or S3-compatible endpoint
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

func NewArchiveService(store ObjectStore, bucket string, timeout time.Duration) ArchiveService {
	return &minioArchive{store: store, bucket: bucket, timeout: timeout}
}

// ObjectName is where an agent's config is archived inside the bucket
func ObjectName(agentID string) string {
	return fmt.Sprintf("agents/%s/openclaw.json", agentID)
}

func (a *minioArchive) Store(ctx context.Context, agentID string, doc []byte) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.ensureBucket(ctx); err != nil {
		return err
	}

	_, err := a.store.PutObject(ctx, a.bucket, ObjectName(agentID), bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload config: %w", err)
	}
	return nil
}

func (a *minioArchive) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bucketReady {
		return nil
	}

	found, err := a.store.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !found {
		if err := a.store.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	a.bucketReady = true
	return nil
}

type noopArchive struct{}

// NewNoopArchive is used when no archive endpoint is configured
func NewNoopArchive() ArchiveService {
	return noopArchive{}
}

func (noopArchive) Store(context.Context, string, []byte) error {
	return nil
}
