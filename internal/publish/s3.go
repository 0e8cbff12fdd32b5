// Package publish copies run artifacts to object storage.
package publish

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectPutter is the subset of *s3.Client used here.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads files under <prefix>/<run id>/ in a bucket.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3 loads the default AWS credential chain for region.
func NewS3(ctx context.Context, bucket, region, prefix string) (*S3Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("publish: load aws config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(c ObjectPutter, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: c, bucket: bucket, prefix: prefix}
}

// Publish uploads each file and returns the object keys. It stops at the
// first failure.
func (p *S3Publisher) Publish(ctx context.Context, runID string, files ...string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := path.Join(p.prefix, runID, filepath.Base(f))
		if err := p.put(ctx, f, key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
		log.Info().Str("bucket", p.bucket).Str("key", key).Msg("artifact published")
	}
	return keys, nil
}

func (p *S3Publisher) put(ctx context.Context, file, key string) error {
	fh, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("publish: open %s: %w", file, err)
	}
	defer fh.Close()

	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        fh,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("publish: put s3://%s/%s: %w", p.bucket, key, err)
	}
	return nil
}
