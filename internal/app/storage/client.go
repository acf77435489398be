package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"chatrelay/internal/pkg/logx"
)

// s3Client implements the StorageService interface, handling interactions with S3-compatible storage.
type s3Client struct {
	cfg      ServiceConfig
	s3Client *s3.Client
	uploader *manager.Uploader
}

// newS3Client initializes the S3 client using a custom configuration that supports S3-compatible endpoints.
func newS3Client(cfg ServiceConfig) (*s3Client, error) {
	sdkCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		logx.Error(err, "failed to load AWS SDK config")
		return nil, errors.New("failed to initialize S3 client configuration")
	}

	// Create S3 Client with Custom Endpoint Resolver.
	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &s3Client{
		cfg:      cfg,
		s3Client: client,
		uploader: manager.NewUploader(client),
	}, nil
}

// Upload streams the blob into the bucket and returns its stable reference.
// The public URL is served from S3PublicBaseURL when configured, falling back
// to the path-style endpoint URL.
func (c *s3Client) Upload(ctx context.Context, key, mimeType string, size int64, body io.Reader) (*UploadedFile, error) {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        &c.cfg.S3BucketName,
		Key:           &key,
		ContentType:   &mimeType,
		ContentLength: &size,
		Body:          body,
	})
	if err != nil {
		logx.Error(err, "S3 upload failed", "key", key)
		return nil, errors.New("failed to upload file")
	}

	return &UploadedFile{
		Key:      key,
		URL:      c.publicURL(key),
		MimeType: mimeType,
		Size:     size,
	}, nil
}

func (c *s3Client) publicURL(key string) string {
	if c.cfg.S3PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(c.cfg.S3PublicBaseURL, "/"), key)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.S3Endpoint, "/"), c.cfg.S3BucketName, key)
}

// PresignDownload generates a presigned URL for downloading the specified file key.
func (c *s3Client) PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(c.s3Client)

	presignInput := &s3.GetObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &key,
	}

	resp, err := presignClient.PresignGetObject(ctx, presignInput, s3.WithPresignExpires(duration))
	if err != nil {
		logx.Error(err, "failed to generate presigned URL", "key", key)
		return "", errors.New("failed to generate presigned URL")
	}

	return resp.URL, nil
}

// Delete removes the file specified by the given key from the bucket.
func (c *s3Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &key,
	})

	if err != nil {
		logx.Error(err, "S3 delete failed", "key", key)
		return errors.New("failed to delete file from S3")
	}

	return nil
}

// GetObjectMetadata retrieves the metadata of an object.
func (c *s3Client) GetObjectMetadata(ctx context.Context, key string) (map[string]string, error) {
	resp, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &key,
	})

	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, errors.New("file not found")
		}
		logx.Error(err, "failed to get S3 object metadata", "key", key)
		return nil, errors.New("failed to fetch S3 metadata")
	}

	metadata := make(map[string]string)
	if resp.ContentType != nil {
		metadata["Content-Type"] = *resp.ContentType
	}
	if resp.ContentLength != nil {
		metadata["Content-Length"] = strconv.FormatInt(*resp.ContentLength, 10)
	}

	return metadata, nil
}
