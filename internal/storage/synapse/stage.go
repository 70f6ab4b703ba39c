package synapse

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"

	"taxietl/internal/blobstore"
)

// blobAPI is the subset of *azblob.Client used for staging.
type blobAPI interface {
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
	DeleteBlob(ctx context.Context, containerName, blobName string, o *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
}

// stage is one run's folder of CSV parts under the staging prefix.
type stage struct {
	blobs blobAPI
	dir   blobstore.Location

	mu    sync.Mutex
	parts []string
}

// put encodes rows and uploads them as the next part. Encoding streams into
// the upload through a pipe, so a batch is never held compressed in memory.
func (s *stage) put(ctx context.Context, rows [][]any) (string, error) {
	s.mu.Lock()
	name := s.dir.Join(fmt.Sprintf("part-%05d.csv.gz", len(s.parts))).Path
	s.parts = append(s.parts, name)
	s.mu.Unlock()

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeCSV(pw, rows))
	}()
	_, err := s.blobs.UploadStream(ctx, s.dir.Container, name, pr, nil)
	// unblocks the encoder if the upload gave up early
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return name, fmt.Errorf("upload %s: %w", name, err)
	}
	return name, nil
}

// cleanup deletes every staged part. Failures are logged, not returned: the
// load outcome is already decided when cleanup runs.
func (s *stage) cleanup(ctx context.Context) int {
	s.mu.Lock()
	parts := s.parts
	s.parts = nil
	s.mu.Unlock()

	deleted := 0
	for _, p := range parts {
		if _, err := s.blobs.DeleteBlob(ctx, s.dir.Container, p, nil); err != nil {
			zap.S().Warnf("synapse: delete staged blob=%s err=%v", p, err)
			continue
		}
		deleted++
	}
	return deleted
}

func (s *stage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parts)
}
