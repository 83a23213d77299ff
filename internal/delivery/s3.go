package delivery

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Mirror optionally copies every local-sink markdown file to a bucket, so
// cron/local delivery output survives a host loss. It is present in the
// teacher's go.mod but unused there; wired here as the durability feature
// SPEC_FULL.md's DOMAIN STACK section commits to.
type S3Mirror struct {
	uploader *manager.Uploader
	bucket   string
}

// NewS3Mirror builds a mirror against bucket using the default AWS
// credential chain (env vars, shared config, instance role). Returns
// (nil, nil) when bucket is empty so callers can treat "no mirror
// configured" and "mirror configured" uniformly without a nil check at
// every call site — Mirror is a no-op on a nil receiver.
func NewS3Mirror(ctx context.Context, bucket string) (*S3Mirror, error) {
	if bucket == "" {
		return nil, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config for s3 mirror: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Mirror{uploader: manager.NewUploader(client), bucket: bucket}, nil
}

// Mirror uploads content under key (typically the same "<job_id>/<ts>.md"
// path used by the local sink). A nil receiver is a no-op so call sites
// don't need to special-case "mirror disabled".
func (m *S3Mirror) Mirror(ctx context.Context, key, content string) error {
	if m == nil {
		return nil
	}
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(content)),
		ContentType: aws.String("text/markdown"),
	})
	if err != nil {
		return fmt.Errorf("mirror delivery output to s3: %w", err)
	}
	return nil
}
