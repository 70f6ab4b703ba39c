package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"taxietl/internal/blobstore"
	"taxietl/internal/config"
	"taxietl/internal/datasource"
	"taxietl/internal/datasource/awss3"
	"taxietl/internal/datasource/azureblob"
	"taxietl/internal/datasource/file"
	"taxietl/internal/datasource/gcs"
	"taxietl/internal/datasource/httpds"
)

// openSource opens the input object named by spec. Remote objects are
// wrapped in a block cache sized from spec.Runtime.
func openSource(ctx context.Context, spec config.Pipeline, sec config.Secrets) (datasource.Object, error) {
	src := spec.Source
	rel, err := partitionPath(src.Partition)
	if err != nil {
		return nil, err
	}

	var s datasource.Source
	switch src.Kind {
	case "file":
		p := src.File.Path
		if rel != "" {
			p = filepath.Join(p, filepath.FromSlash(rel))
		}
		return file.NewLocal(p).Open(ctx)

	case "azblob":
		loc, err := blobLocation(src.AzBlob, rel)
		if err != nil {
			return nil, err
		}
		s = azureblob.New(loc, sec.StorageAccountKey)

	case "s3":
		s = awss3.New(awss3.Config{
			Bucket:          src.S3.Bucket,
			Key:             joinKey(src.S3.Key, rel),
			Region:          src.S3.Region,
			Endpoint:        src.S3.Endpoint,
			AccessKeyID:     sec.AWSAccessKeyID,
			SecretAccessKey: sec.AWSSecretAccessKey,
			SessionToken:    sec.AWSSessionToken,
		})

	case "gcs":
		s = gcs.New(gcs.Config{
			Bucket:          src.GCS.Bucket,
			Key:             joinKey(src.GCS.Key, rel),
			Endpoint:        src.GCS.Endpoint,
			CredentialsFile: sec.GCSCredentialsFile,
		})

	case "http":
		s = httpds.New(joinURL(src.HTTP.URL, rel), nil)

	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", src.Kind)
	}

	obj, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := datasource.NewCachedReaderAt(obj, spec.Runtime.CacheBlockSize, spec.Runtime.CacheBlocks)
	if err != nil {
		obj.Close()
		return nil, err
	}
	zap.S().Infof("source: opened %s size=%d", obj.Name(), obj.Size())
	return cached, nil
}

// blobLocation resolves an azblob block. A URL wins over account/container
// fields, and the partition path is ignored with a URL.
func blobLocation(a config.SourceAzBlob, rel string) (blobstore.Location, error) {
	if a.URL != "" {
		loc, err := blobstore.ParseURL(a.URL)
		if err != nil {
			return blobstore.Location{}, fmt.Errorf("source.azblob.url: %w", err)
		}
		if a.Endpoint != "" {
			loc.Endpoint = a.Endpoint
		}
		return loc, nil
	}
	loc := blobstore.Location{Account: a.Account, Container: a.Container, Path: a.Path, Endpoint: a.Endpoint}
	if rel != "" {
		loc = loc.Join(rel)
	}
	return loc, nil
}

func partitionPath(p *config.Partition) (string, error) {
	if p == nil {
		return "", nil
	}
	return datasource.PartitionPath(p.Dataset, p.Prefix, p.Year, p.Month, p.Ext)
}

// joinKey treats key as a prefix when a partition path is present.
func joinKey(key, rel string) string {
	if rel == "" {
		return key
	}
	return path.Join(key, rel)
}

// joinURL appends a partition path to a base URL.
func joinURL(base, rel string) string {
	if rel == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + rel
}
