// Package gcs reads the input object from Google Cloud Storage with range
// readers.
package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"taxietl/internal/datasource"
	"taxietl/internal/etlerr"
)

// Config addresses one object.
type Config struct {
	Bucket string
	Key    string
	// Endpoint targets an emulator; authentication is then skipped.
	Endpoint string
	// CredentialsFile is a service account JSON file. Empty means
	// application default credentials.
	CredentialsFile string
}

// object is the subset of *storage.ObjectHandle used here.
type object interface {
	Attrs(ctx context.Context) (*storage.ObjectAttrs, error)
	NewRangeReader(ctx context.Context, offset, length int64) (*storage.Reader, error)
}

type sizeFunc func(context.Context) (int64, error)

// opener returns the object's size lookup, its range reader and a func that
// releases the client.
type opener func(ctx context.Context) (sizeFunc, datasource.RangeFunc, func() error, error)

// Source opens one GCS object.
type Source struct {
	cfg Config

	// handle is replaced in tests; nil builds a real client.
	handle opener
}

// New returns a Source.
func New(cfg Config) *Source { return &Source{cfg: cfg} }

// ClientOptions returns the client options for cfg.
func ClientOptions(cfg Config) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// Name returns the gs:// address.
func (s *Source) Name() string { return fmt.Sprintf("gs://%s/%s", s.cfg.Bucket, s.cfg.Key) }

func (s *Source) realHandle(ctx context.Context) (sizeFunc, datasource.RangeFunc, func() error, error) {
	client, err := storage.NewClient(ctx, ClientOptions(s.cfg)...)
	if err != nil {
		return nil, nil, nil, err
	}
	var obj object = client.Bucket(s.cfg.Bucket).Object(s.cfg.Key)
	attrs := func(ctx context.Context) (int64, error) {
		a, err := obj.Attrs(ctx)
		if err != nil {
			return 0, err
		}
		return a.Size, nil
	}
	rng := func(ctx context.Context, off, length int64) (io.ReadCloser, error) {
		return obj.NewRangeReader(ctx, off, length)
	}
	return attrs, rng, client.Close, nil
}

// Open reads the object attributes for its size and returns a ranged reader.
func (s *Source) Open(ctx context.Context) (datasource.Object, error) {
	name := s.Name()
	handle := s.handle
	if handle == nil {
		handle = s.realHandle
	}
	attrs, rng, closeFn, err := handle(ctx)
	if err != nil {
		return nil, etlerr.Connectivity("gcs client", err)
	}
	size, err := attrs(ctx)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, etlerr.Connectivity("gcs attrs "+name, err)
	}
	if err := datasource.CheckSize(name, size); err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, err
	}
	zap.S().Infof("source: gcs=%s size=%d", name, size)
	return datasource.NewRanged(ctx, name, size, rng, closeFn), nil
}
