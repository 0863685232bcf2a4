// Package storage uploads captured screenshots to object storage and hands
// back time-limited access URLs.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// UploadResult identifies a stored object and the presigned URL granting
// bounded-lifetime access to it. Never persisted.
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Uploader stores a local artifact and returns its access reference.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (UploadResult, error)
}

// objectPutter is the subset of the S3 client the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// objectPresigner is the subset of the S3 presign client the uploader needs.
type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Uploader stores screenshots in a bucket and presigns GET URLs for them.
type S3Uploader struct {
	client    objectPutter
	presigner objectPresigner
	bucket    string
	keyPrefix string
	urlTTL    time.Duration
}

func NewS3Uploader(ctx context.Context, bucket, keyPrefix, region string, urlTTL time.Duration) (*S3Uploader, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("missing bucket")
	}
	if strings.TrimSpace(region) == "" {
		return nil, fmt.Errorf("missing region")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		keyPrefix: keyPrefix,
		urlTTL:    urlTTL,
	}, nil
}

// Upload puts the file under a fresh key and returns a presigned GET URL
// valid for the configured TTL.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(localPath))
	key := path.Join(u.keyPrefix, uuid.New().String()+ext)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(ext)),
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("put object: %w", err)
	}

	signed, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.urlTTL))
	if err != nil {
		return UploadResult{}, fmt.Errorf("presign object: %w", err)
	}

	slog.Info("screenshot uploaded", "key", key, "ttl", u.urlTTL)
	return UploadResult{Key: key, URL: signed.URL}, nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
