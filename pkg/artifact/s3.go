package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source reads archives from an S3 (or S3-compatible) mirror addressed as
// s3://bucket/key. The client is created on first use from the default AWS
// credential chain.
type S3Source struct {
	Region   string
	Endpoint string

	once    sync.Once
	client  *s3.Client
	initErr error
}

// NewS3Source creates a lazily initialised S3 source.
func NewS3Source(region, endpoint string) *S3Source {
	return &S3Source{Region: region, Endpoint: endpoint}
}

func (s *S3Source) init(ctx context.Context) error {
	s.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if s.Region != "" {
			opts = append(opts, awsconfig.WithRegion(s.Region))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.initErr = fmt.Errorf("load aws config: %w", err)
			return
		}

		s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if s.Endpoint != "" {
				o.BaseEndpoint = aws.String(s.Endpoint)
				o.UsePathStyle = true
			}
		})

		slog.Debug("s3 artifact source initialized", "region", s.Region, "endpoint", s.Endpoint)
	})
	return s.initErr
}

// Open implements Source.
func (s *S3Source) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if err := s.init(ctx); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: get s3://%s/%s: %v", ErrDownloadFailed, bucket, key, err)
	}

	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 url: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 url: %s", rawURL)
	}

	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs bucket and key: %s", rawURL)
	}
	return bucket, key, nil
}
