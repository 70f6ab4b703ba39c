package awss3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxietl/internal/etlerr"
)

type fakeS3 struct {
	data    []byte
	headErr error
	ranges  []string
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.data)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	rng := aws.ToString(in.Range)
	f.ranges = append(f.ranges, rng)
	var start, end int64
	if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.data[start : end+1]))}, nil
}

func TestOpenRangedGet(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{data: []byte("0123456789abcdef")}
	src := New(Config{Bucket: "nyc-tlc", Key: "trip data/yellow_tripdata_2025-01.parquet"}).WithClient(fake)

	obj, err := src.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(16), obj.Size())
	assert.Equal(t, "s3://nyc-tlc/trip data/yellow_tripdata_2025-01.parquet", obj.Name())

	p := make([]byte, 4)
	_, err = obj.ReadAt(p, 10)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(p))
	assert.Equal(t, []string{"bytes=10-13"}, fake.ranges)
}

func TestOpenHeadFailureIsConnectivity(t *testing.T) {
	t.Parallel()

	src := New(Config{Bucket: "b", Key: "k"}).WithClient(&fakeS3{headErr: errors.New("403 Forbidden")})
	_, err := src.Open(context.Background())
	require.ErrorIs(t, err, etlerr.ErrConnectivity)
}

// TestNewClientEndpoint verifies a custom endpoint switches to path-style
// addressing for S3-compatible stores.
func TestNewClientEndpoint(t *testing.T) {
	c, err := NewClient(context.Background(), Config{
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	opts := c.Options()
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "us-east-1", opts.Region)
}
