package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mocks
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectStorage) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expires, reqParams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

func (m *MockObjectStorage) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

func TestUpload(t *testing.T) {
	mockStore := new(MockObjectStorage)
	service := &Service{store: mockStore, bucketName: "attachments"}

	userID := uuid.New()
	reader := strings.NewReader("file contents")
	ctx := context.Background()

	downloadURL, _ := url.Parse("https://minio.local/attachments/obj?sig=abc")

	mockStore.On("PutObject", ctx, "attachments", mock.AnythingOfType("string"), reader, int64(13), mock.Anything).
		Return(minio.UploadInfo{Size: 13}, nil)
	mockStore.On("PresignedGetObject", ctx, "attachments", mock.AnythingOfType("string"), 24*time.Hour, url.Values(nil)).
		Return(downloadURL, nil)

	output, err := service.Upload(ctx, userID, "photo.png", "image/png", 13, reader)

	assert.NoError(t, err)
	assert.Contains(t, output.ObjectKey, userID.String())
	assert.True(t, strings.HasSuffix(output.ObjectKey, ".png"))
	assert.Equal(t, downloadURL.String(), output.DownloadURL)
	assert.Equal(t, int64(13), output.Size)

	mockStore.AssertExpectations(t)
}

func TestUpload_TooLarge(t *testing.T) {
	mockStore := new(MockObjectStorage)
	service := &Service{store: mockStore, bucketName: "attachments"}

	output, err := service.Upload(context.Background(), uuid.New(), "big.bin", "application/octet-stream", 1<<40, strings.NewReader(""))

	assert.Error(t, err)
	assert.Nil(t, output)
	mockStore.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_PutFails(t *testing.T) {
	mockStore := new(MockObjectStorage)
	service := &Service{store: mockStore, bucketName: "attachments"}

	reader := strings.NewReader("x")
	ctx := context.Background()

	mockStore.On("PutObject", ctx, "attachments", mock.AnythingOfType("string"), reader, int64(1), mock.Anything).
		Return(minio.UploadInfo{}, assert.AnError)

	output, err := service.Upload(ctx, uuid.New(), "f.txt", "text/plain", 1, reader)

	assert.Error(t, err)
	assert.Nil(t, output)
}

func TestDelete(t *testing.T) {
	mockStore := new(MockObjectStorage)
	service := &Service{store: mockStore, bucketName: "attachments"}

	ctx := context.Background()
	mockStore.On("RemoveObject", ctx, "attachments", "attachments/u/obj.png", mock.Anything).Return(nil)

	err := service.Delete(ctx, "attachments/u/obj.png")

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
}
