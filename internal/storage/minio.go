// Package storage holds uploaded source files in object storage. Uploads
// receive a minio:// content ref that the extractor resolves back through
// the Fetch method.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const refScheme = "minio://"

// ObjectStore wraps a MinIO client for source file storage.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &ObjectStore{client: client, bucket: bucket}, nil
}

// Upload stores bytes under the given object key and returns a content ref
// suitable for later Fetch calls.
func (s *ObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return refScheme + s.bucket + "/" + key, nil
}

// Fetch resolves a minio:// content ref to the stored bytes. It satisfies
// the extractor's Fetcher interface.
func (s *ObjectStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	key, err := s.parseRef(ref)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// Remove deletes the object behind a content ref.
func (s *ObjectStore) Remove(ctx context.Context, ref string) error {
	key, err := s.parseRef(ref)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *ObjectStore) parseRef(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, refScheme)
	if !ok {
		return "", fmt.Errorf("not an object storage ref: %q", ref)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return "", fmt.Errorf("malformed object storage ref: %q", ref)
	}
	if bucket != s.bucket {
		return "", fmt.Errorf("ref bucket %q does not match configured bucket %q", bucket, s.bucket)
	}
	return key, nil
}
