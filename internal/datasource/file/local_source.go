// Package file opens input objects from the local filesystem. It backs local
// runs and tests; remote objects go through the cloud sources.
package file

import (
	"context"
	"fmt"
	"os"

	"taxietl/internal/datasource"
)

// Local is a filesystem source bound to one path.
type Local struct{ path string }

// NewLocal returns a Local source for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the path and stats it for its size.
//
// A context that is already done short-circuits before touching the
// filesystem. Filesystem errors are wrapped with the path and still match
// errors.Is(err, os.ErrNotExist). A missing file is a configuration problem,
// not a connectivity one, so it is not classified.
func (l *Local) Open(ctx context.Context) (datasource.Object, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open %s: is a directory", l.path)
	}
	if err := datasource.CheckSize(l.path, st.Size()); err != nil {
		f.Close()
		return nil, err
	}
	return &object{File: f, size: st.Size()}, nil
}

type object struct {
	*os.File
	size int64
}

func (o *object) Size() int64 { return o.size }
