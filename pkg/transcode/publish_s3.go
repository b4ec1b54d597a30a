package transcode

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/internal/protocol/http1"
	"github.com/marmos91/mediaforge/internal/telemetry"
	"github.com/marmos91/mediaforge/pkg/metrics"
)

// S3Config configures publishing to an S3-compatible bucket.
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// objectPutter is the subset of *s3.Client the publisher uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads every file under an output directory to
// <bucket>/<prefix>/<media id>/<relative path>.
type S3Publisher struct {
	client  objectPutter
	bucket  string
	prefix  string
	metrics metrics.TranscodeMetrics
}

// NewS3Publisher builds a client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS chain. A custom endpoint
// switches to path-style addressing for MinIO and localstack.
func NewS3Publisher(ctx context.Context, cfg S3Config, m metrics.TranscodeMetrics) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 publish requires bucket")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return newS3Publisher(client, cfg.Bucket, cfg.Prefix, m), nil
}

func newS3Publisher(client objectPutter, bucket, prefix string, m metrics.TranscodeMetrics) *S3Publisher {
	return &S3Publisher{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		metrics: m,
	}
}

// Key returns the object key for a file relative to the output directory.
func (p *S3Publisher) Key(mediaID, rel string) string {
	return path.Join(p.prefix, mediaID, filepath.ToSlash(rel))
}

// Publish uploads playlists and segments. ffmpeg logs stay local. The first
// failed upload aborts the walk.
func (p *S3Publisher) Publish(ctx context.Context, mediaID, dir string) error {
	ctx, span := telemetry.StartTranscodeSpan(ctx, telemetry.SpanTranscodePublish, mediaID,
		telemetry.Bucket(p.bucket))
	defer span.End()

	start := time.Now()
	var objects int
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(file) == ".log" {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		if err := p.putFile(ctx, p.Key(mediaID, rel), file); err != nil {
			return err
		}
		objects++
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("publish %s: %w", mediaID, err)
	}

	logger.InfoCtx(ctx, "Published HLS output",
		logger.KeyBucket, p.bucket,
		"objects", objects,
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}

func (p *S3Publisher) putFile(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(http1.ContentType(file)),
	})
	if p.metrics != nil {
		p.metrics.RecordPublish(info.Size(), err)
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	logger.Debug("Published object", logger.KeyBucket, p.bucket, logger.KeyKey, key)
	return nil
}

var _ Publisher = (*S3Publisher)(nil)
