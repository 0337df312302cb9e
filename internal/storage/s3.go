// Package storage puts product images on an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"storefront/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no bucket is configured
var ErrNotConfigured = errors.New("image storage is not configured")

// Object is a stored file
type Object struct {
	Key string
	URL string
}

// S3Host uploads to and deletes from one bucket
type S3Host struct {
	client    *s3.Client
	bucket    string
	region    string
	publicURL string
	basePath  string
	now       func() time.Time
}

// NewS3Host builds a host from configuration. Static credentials are used when both keys are set,
// otherwise the default AWS credential chain applies.
func NewS3Host(ctx context.Context, cfg config.StorageConfig) (*S3Host, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Host{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		basePath:  strings.Trim(cfg.BasePath, "/"),
		now:       time.Now,
	}, nil
}

// Upload stores data under a fresh key with the given extension
func (h *S3Host) Upload(ctx context.Context, data []byte, ext, contentType string) (*Object, error) {
	key := h.generateKey(ext)

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return &Object{Key: key, URL: h.PublicURL(key)}, nil
}

// Delete removes the object stored under key
func (h *S3Host) Delete(ctx context.Context, key string) error {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (h *S3Host) generateKey(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := uuid.New().String() + ext
	return path.Join(h.basePath, h.now().UTC().Format("2006/01/02"), name)
}

// PublicURL returns the address clients load key from
func (h *S3Host) PublicURL(key string) string {
	if h.publicURL != "" {
		return h.publicURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", h.bucket, h.region, key)
}
