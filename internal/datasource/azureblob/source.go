// Package azureblob reads the input object from Azure Blob Storage with
// ranged downloads.
package azureblob

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.uber.org/zap"

	"taxietl/internal/blobstore"
	"taxietl/internal/datasource"
	"taxietl/internal/etlerr"
)

// blobAPI is the subset of *blob.Client used here.
type blobAPI interface {
	GetProperties(ctx context.Context, o *blob.GetPropertiesOptions) (blob.GetPropertiesResponse, error)
	DownloadStream(ctx context.Context, o *blob.DownloadStreamOptions) (blob.DownloadStreamResponse, error)
}

// Source opens one blob.
type Source struct {
	loc        blobstore.Location
	accountKey string

	// newBlob is replaced in tests.
	newBlob func(loc blobstore.Location, key string) (blobAPI, error)
}

// New returns a Source for loc. accountKey may be empty to use the default
// Azure credential chain.
func New(loc blobstore.Location, accountKey string) *Source {
	return &Source{loc: loc, accountKey: accountKey, newBlob: newBlobClient}
}

func newBlobClient(loc blobstore.Location, key string) (blobAPI, error) {
	c, err := blobstore.NewClient(loc, key)
	if err != nil {
		return nil, err
	}
	return c.ServiceClient().NewContainerClient(loc.Container).NewBlobClient(loc.Path), nil
}

// Location returns the blob address.
func (s *Source) Location() blobstore.Location { return s.loc }

// Open fetches the blob properties for its size and returns a ranged reader.
// Every request failure is a ConnectivityError.
func (s *Source) Open(ctx context.Context) (datasource.Object, error) {
	name := s.loc.Wasbs()
	bc, err := s.newBlob(s.loc, s.accountKey)
	if err != nil {
		return nil, etlerr.Connectivity("azblob client", err)
	}
	props, err := bc.GetProperties(ctx, nil)
	if err != nil {
		return nil, etlerr.Connectivity("azblob properties "+name, err)
	}
	if props.ContentLength == nil {
		return nil, etlerr.Connectivity("azblob properties "+name, fmt.Errorf("no content length"))
	}
	size := *props.ContentLength
	if err := datasource.CheckSize(name, size); err != nil {
		return nil, err
	}
	zap.S().Infof("source: azblob=%s size=%d", name, size)

	fetch := func(ctx context.Context, off, length int64) (io.ReadCloser, error) {
		resp, err := bc.DownloadStream(ctx, &blob.DownloadStreamOptions{
			Range: blob.HTTPRange{Offset: off, Count: length},
		})
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}
	return datasource.NewRanged(ctx, name, size, fetch, nil), nil
}
