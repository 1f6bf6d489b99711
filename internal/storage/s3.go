package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const presignExpiry = 24 * time.Hour

// S3Options configures an S3-compatible object store.
type S3Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// S3Store writes blobs to an S3-compatible bucket. Objects are addressed via
// PublicBaseURL when set and through presigned GET URLs otherwise.
type S3Store struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewS3Store connects to the endpoint and ensures the bucket exists.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create s3 client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: make bucket: %w", err)
		}
	}
	return &S3Store{
		client:     client,
		bucket:     opts.Bucket,
		publicBase: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
	}, nil
}

// Put uploads data and returns the object's fetchable URL.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return Object{}, err
	}
	_, err = s.client.PutObject(ctx, s.bucket, cleanKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=3600",
	})
	if err != nil {
		return Object{}, fmt.Errorf("s3 put object: %w", err)
	}
	link, err := s.objectURL(ctx, cleanKey)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: cleanKey, URL: link, ContentType: contentType, Size: int64(len(data))}, nil
}

func (s *S3Store) objectURL(ctx context.Context, key string) (string, error) {
	if s.publicBase != "" {
		return publicObjectURL(s.publicBase, key), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}
	return u.String(), nil
}

func publicObjectURL(base, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return base + "/" + strings.Join(parts, "/")
}
