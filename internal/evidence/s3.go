package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config selects the bucket an evidence pack is archived to.
type S3Config struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint and UsePathStyle target S3-compatible stores (MinIO, LocalStack).
	Endpoint     string
	UsePathStyle bool

	// Static credentials; the default AWS chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// ObjectPutter is the part of *s3.Client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies pack files into a bucket.
type S3Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Uploader builds an uploader backed by a real S3 client.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3UploaderWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

// NewS3UploaderWithClient wraps an existing client.
func NewS3UploaderWithClient(client ObjectPutter, bucket, prefix string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, prefix: prefix}
}

// Upload puts every file of m from dir under prefix/<pack>/ and returns
// the object keys in manifest order.
func (u *S3Uploader) Upload(ctx context.Context, dir string, m *Manifest) ([]string, error) {
	pack := filepath.Base(filepath.Clean(dir))
	var keys []string
	for _, name := range m.Files() {
		key := path.Join(u.prefix, pack, name)
		if err := u.put(ctx, filepath.Join(dir, name), key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	slog.Info("evidence pack uploaded", "bucket", u.bucket, "prefix", path.Join(u.prefix, pack), "objects", len(keys))
	return keys, nil
}

func (u *S3Uploader) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("s3: open %s: %w", file, err)
	}
	defer f.Close()

	contentType := "application/x-ndjson"
	switch filepath.Ext(file) {
	case ".json":
		contentType = "application/json"
	case ".txt":
		contentType = "text/plain"
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}
