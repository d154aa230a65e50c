// Package storage handles attachment uploads backed by MinIO.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"chatlink-backend/pkg/constants"
	apperrors "chatlink-backend/pkg/errors"
)

// ObjectStorage is the subset of the MinIO client the service uses
type ObjectStorage interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Service handles file storage operations
type Service struct {
	store      ObjectStorage
	bucketName string
}

// Config holds MinIO connection settings
type Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

// NewService creates a new storage service and ensures the bucket exists
func NewService(config *Config) (*Service, error) {
	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, config.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := minioClient.MakeBucket(ctx, config.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Service{
		store:      minioClient,
		bucketName: config.BucketName,
	}, nil
}

// UploadOutput describes a stored attachment
type UploadOutput struct {
	ObjectKey   string
	DownloadURL string
	Size        int64
}

// Upload stores an attachment and returns a presigned download URL the
// sender can embed as the content of an image or file message
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, fileName, contentType string, size int64, reader io.Reader) (*UploadOutput, error) {
	if size <= 0 || size > constants.MaxUploadSize {
		return nil, apperrors.ValidationError(fmt.Sprintf("file size must be between 1 byte and %d bytes", constants.MaxUploadSize))
	}

	objectKey := fmt.Sprintf("attachments/%s/%s%s", userID, uuid.New(), filepath.Ext(fileName))

	info, err := s.store.PutObject(ctx, s.bucketName, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, apperrors.StorageError(err)
	}

	url, err := s.DownloadURL(ctx, objectKey)
	if err != nil {
		return nil, err
	}

	return &UploadOutput{
		ObjectKey:   objectKey,
		DownloadURL: url,
		Size:        info.Size,
	}, nil
}

// DownloadURL generates a presigned URL for an attachment, valid for a day
func (s *Service) DownloadURL(ctx context.Context, objectKey string) (string, error) {
	presignedURL, err := s.store.PresignedGetObject(ctx, s.bucketName, objectKey, 24*time.Hour, nil)
	if err != nil {
		return "", apperrors.StorageError(err)
	}
	return presignedURL.String(), nil
}

// Delete removes an attachment from the bucket
func (s *Service) Delete(ctx context.Context, objectKey string) error {
	if err := s.store.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return apperrors.StorageError(err)
	}
	return nil
}
