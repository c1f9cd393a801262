package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for creating an S3Writer.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// PutObjectAPI is the interface for the S3 PutObject operation.
// Used for testing with mock implementations.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer stores files as objects in a bucket. The path passed to WriteFile
// becomes the object key with any leading slashes removed, so a download
// directory acts as a key prefix.
type S3Writer struct {
	bucket string
	client PutObjectAPI
}

// NewS3 creates an S3Writer from the default AWS configuration chain,
// optionally with static credentials and a custom endpoint for
// S3-compatible object stores.
func NewS3(ctx context.Context, cfg S3Config) (*S3Writer, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Writer{
		bucket: cfg.Bucket,
		client: client,
	}, nil
}

// NewS3WithClient creates an S3Writer with a custom client, used for testing.
func NewS3WithClient(bucket string, client PutObjectAPI) *S3Writer {
	return &S3Writer{
		bucket: bucket,
		client: client,
	}
}

// WriteFile uploads data under the key derived from path.
func (w *S3Writer) WriteFile(ctx context.Context, path string, data []byte) error {
	key := objectKey(path)
	if key == "" {
		return fmt.Errorf("empty object key for path %q", path)
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to store object in S3: %w", err)
	}
	return nil
}

// Bucket returns the target bucket name.
func (w *S3Writer) Bucket() string {
	return w.bucket
}

func objectKey(path string) string {
	return strings.TrimLeft(path, "/")
}

var _ Writer = (*S3Writer)(nil)
