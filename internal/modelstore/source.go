// Package modelstore loads forecast model handles from a manifest and a
// zstd-compressed weights blob stored in S3 or on local disk.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"courtwind/internal/types"
)

// ObjectSource reads model artifacts by key.
type ObjectSource interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads artifacts from a bucket.
type S3Source struct {
	client S3API
	bucket string
}

// NewS3Source creates an S3Source.
func NewS3Source(client S3API, bucket string) *S3Source {
	return &S3Source{client: client, bucket: bucket}
}

// GetObject implements ObjectSource.
func (s *S3Source) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, types.NewAppError(types.ErrCodeNotFoundModel, fmt.Sprintf("model artifact s3://%s/%s not found", s.bucket, key), err)
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamModelStore, fmt.Sprintf("failed to fetch s3://%s/%s", s.bucket, key), err)
	}
	return out.Body, nil
}

// DirSource reads artifacts from a local directory. Keys are slash-separated
// paths relative to Root.
type DirSource struct {
	Root string
}

// GetObject implements ObjectSource.
func (d DirSource) GetObject(_ context.Context, key string) (io.ReadCloser, error) {
	p := filepath.Join(d.Root, filepath.FromSlash(key))
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.NewAppError(types.ErrCodeNotFoundModel, fmt.Sprintf("model artifact %s not found", p), err)
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamModelStore, fmt.Sprintf("failed to open %s", p), err)
	}
	return f, nil
}
