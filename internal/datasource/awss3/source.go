// Package awss3 reads the input object from Amazon S3 (or an S3-compatible
// store) with ranged GetObject requests.
package awss3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"taxietl/internal/datasource"
	"taxietl/internal/etlerr"
)

// API is the subset of *s3.Client used here.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config addresses one object and how to reach it.
type Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Source opens one S3 object.
type Source struct {
	cfg    Config
	client API
}

// New returns a Source. The client is built lazily on Open unless one is
// supplied with WithClient.
func New(cfg Config) *Source { return &Source{cfg: cfg} }

// WithClient sets the client, for tests and callers that share one.
func (s *Source) WithClient(c API) *Source {
	s.client = c
	return s
}

// NewClient builds an S3 client from the default AWS config chain, with
// static keys and a custom endpoint when configured.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("awss3: load sdk config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Name returns the s3:// address.
func (s *Source) Name() string { return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, s.cfg.Key) }

// Open heads the object for its size and returns a ranged reader.
func (s *Source) Open(ctx context.Context) (datasource.Object, error) {
	name := s.Name()
	if s.client == nil {
		c, err := NewClient(ctx, s.cfg)
		if err != nil {
			return nil, etlerr.Connectivity("s3 client", err)
		}
		s.client = c
	}
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.cfg.Key),
	})
	if err != nil {
		return nil, etlerr.Connectivity("s3 head "+name, err)
	}
	size := aws.ToInt64(head.ContentLength)
	if err := datasource.CheckSize(name, size); err != nil {
		return nil, err
	}
	zap.S().Infof("source: s3=%s size=%d", name, size)

	client := s.client
	fetch := func(ctx context.Context, off, length int64) (io.ReadCloser, error) {
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(s.cfg.Key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+length-1)),
		})
		if err != nil {
			return nil, err
		}
		return out.Body, nil
	}
	return datasource.NewRanged(ctx, name, size, fetch, nil), nil
}
