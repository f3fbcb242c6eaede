package lookup

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
)

// S3Storage serves dataset files named <domain>.txt from a bucket that is
// populated out of band.
type S3Storage struct {
	client *minio.Client
	bucket string
}

func NewS3Storage(client *minio.Client, bucket string) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func (s *S3Storage) Stat(ctx context.Context, domain string) (int64, error) {
	if s.client == nil {
		return 0, fmt.Errorf("s3 client is nil")
	}

	info, err := s.client.StatObject(ctx, s.bucket, objectKey(domain), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return 0, ErrDatasetNotFound
		}
		return 0, fmt.Errorf("stat object: %w", err)
	}

	return info.Size, nil
}

func (s *S3Storage) Get(ctx context.Context, domain string) (io.ReadCloser, int64, error) {
	if s.client == nil {
		return nil, 0, fmt.Errorf("s3 client is nil")
	}

	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(domain), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("get object: %w", err)
	}

	// GetObject is lazy; Stat on the handle surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, 0, ErrDatasetNotFound
		}
		return nil, 0, fmt.Errorf("stat object: %w", err)
	}

	return obj, info.Size, nil
}

func objectKey(domain string) string {
	return domain + ".txt"
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == 404
}
