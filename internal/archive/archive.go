// Package archive copies a finished results file to S3-compatible object
// storage (AWS S3 or MinIO).
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader stores a local file under key.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) error
}

// Config holds S3 connection parameters.
type Config struct {
	Bucket          string
	Region          string // default us-east-1
	Endpoint        string // optional, e.g. a MinIO URL
	AccessKeyID     string // optional; default credential chain when empty
	SecretAccessKey string
	PathStyle       bool
	Prefix          string // prepended to every key
}

// Environment variables read by ConfigFromEnv:
//
//	RIG_ARCHIVE_S3_REGION, RIG_ARCHIVE_S3_ENDPOINT, RIG_ARCHIVE_S3_PATH_STYLE,
//	RIG_ARCHIVE_S3_PREFIX, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY

// ConfigFromEnv builds a Config for bucket from the process environment.
func ConfigFromEnv(bucket string) Config {
	return Config{
		Bucket:          bucket,
		Region:          os.Getenv("RIG_ARCHIVE_S3_REGION"),
		Endpoint:        os.Getenv("RIG_ARCHIVE_S3_ENDPOINT"),
		PathStyle:       strings.EqualFold(os.Getenv("RIG_ARCHIVE_S3_PATH_STYLE"), "true"),
		Prefix:          os.Getenv("RIG_ARCHIVE_S3_PREFIX"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
}

// S3Uploader uploads to a single bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an uploader. Extra options are applied to the S3 client,
// which lets tests substitute the HTTP transport.
func NewS3(ctx context.Context, cfg Config, opts ...func(*s3.Options)) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, opt := range opts {
			opt(o)
		}
	})
	return &S3Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Upload puts the file at localPath under prefix+key.
func (u *S3Uploader) Upload(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("archive: stat %s: %w", localPath, err)
	}

	fullKey := u.prefix + key
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(fullKey),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("archive: put s3://%s/%s: %w", u.bucket, fullKey, err)
	}
	return nil
}

// Key returns the object key for a results file: rigID/YYYY-MM-DD/basename.
func Key(rigID string, epoch time.Time, resultsPath string) string {
	return path.Join(rigID, epoch.UTC().Format("2006-01-02"), filepath.Base(resultsPath))
}
