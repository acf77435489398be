package storage

import (
	"context"
	"io"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3PublicBaseURL   string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// UploadedFile describes a stored blob.
type UploadedFile struct {
	Key      string
	URL      string
	MimeType string
	Size     int64
}

// StorageService defines the public interface for the file storage service.
type StorageService interface {
	// Upload stores a blob under the given key and returns its reference.
	Upload(ctx context.Context, key, mimeType string, size int64, body io.Reader) (*UploadedFile, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error

	// GetObjectMetadata retrieves the object's metadata.
	GetObjectMetadata(ctx context.Context, key string) (map[string]string, error)
}

// NewStorageService is the factory function for StorageService.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewStorageService(cfg ServiceConfig) (StorageService, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(cfg)
}
