// Package s3 implements the saga's object store on Amazon S3: presigned PUT
// upload credentials and fetch/delete of landed objects.
package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/internal/metrics"
)

// ObjectStore implements saga.ObjectStore.
type ObjectStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	log     zerolog.Logger
}

// New creates an ObjectStore.
func New(client *s3.Client, log zerolog.Logger) *ObjectStore {
	return &ObjectStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		log:     log,
	}
}

// PresignUpload mints a write-capable URL for the given key, valid for
// expires.
func (s *ObjectStore) PresignUpload(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign PutObject for %s: %w", key, err)
	}
	return req.URL, nil
}

// Get reads the full body of an object.
func (s *ObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var body []byte

	err := metrics.Measure(s.log, metrics.ReadOperation, "objects.get", func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("GetObject operation failed: %w", err)
		}
		defer out.Body.Close()

		body, err = io.ReadAll(out.Body)
		if err != nil {
			return fmt.Errorf("failed to read object body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Delete removes an object.
func (s *ObjectStore) Delete(ctx context.Context, bucket, key string) error {
	return metrics.Measure(s.log, metrics.DeleteOperation, "objects.delete", func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("DeleteObject operation failed: %w", err)
		}
		return nil
	})
}
