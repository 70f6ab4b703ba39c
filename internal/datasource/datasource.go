// Package datasource opens the input object of a run as a random-access
// reader. Columnar files are read footer first, so every source exposes
// io.ReaderAt plus the object size rather than a stream.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"taxietl/internal/etlerr"
)

// Object is an opened input object.
type Object interface {
	io.ReaderAt
	io.Closer
	// Size is the object length in bytes.
	Size() int64
	// Name identifies the object in logs (a path or URL).
	Name() string
}

// Source opens one object.
type Source interface {
	Open(ctx context.Context) (Object, error)
}

// RangeFunc returns a reader over length bytes starting at off.
type RangeFunc func(ctx context.Context, off, length int64) (io.ReadCloser, error)

// Ranged is an Object that serves ReadAt with one ranged request per call.
// Remote sources build on it; wrap it with NewCachedReaderAt to coalesce the
// many small reads a columnar decoder issues.
type Ranged struct {
	ctx   context.Context
	name  string
	size  int64
	fetch RangeFunc
	close func() error

	requests atomic.Int64
	bytes    atomic.Int64
}

// NewRanged returns an Object over fetch. ctx bounds every request. closeFn
// may be nil.
func NewRanged(ctx context.Context, name string, size int64, fetch RangeFunc, closeFn func() error) *Ranged {
	return &Ranged{ctx: ctx, name: name, size: size, fetch: fetch, close: closeFn}
}

func (r *Ranged) Size() int64  { return r.size }
func (r *Ranged) Name() string { return r.name }

// Requests returns how many ranged requests were issued and how many bytes
// they returned.
func (r *Ranged) Requests() (int64, int64) { return r.requests.Load(), r.bytes.Load() }

// ReadAt implements io.ReaderAt. Reads past the end are clamped and report
// io.EOF, as the io.ReaderAt contract requires.
func (r *Ranged) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	start, end, eof, err := calcRange(len(p), off, r.size)
	if err != nil {
		return 0, err
	}
	p = p[:end-start]

	r.requests.Add(1)
	body, err := r.fetch(r.ctx, start, end-start)
	if err != nil {
		return 0, etlerr.Connectivity("read "+r.name, err)
	}
	defer body.Close()

	n, err := io.ReadFull(body, p)
	r.bytes.Add(int64(n))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return n, io.EOF
		}
		return n, etlerr.Connectivity("read "+r.name, err)
	}
	if eof {
		return n, io.EOF
	}
	return n, nil
}

func (r *Ranged) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// calcRange clamps [off, off+n) to the object. end is exclusive. eof is set
// when the request was clamped.
func calcRange(n int, off, size int64) (start, end int64, eof bool, err error) {
	if off < 0 {
		return 0, 0, false, errors.New("datasource: negative offset")
	}
	if off >= size {
		return 0, 0, false, io.EOF
	}
	start = off
	end = off + int64(n)
	if end > size {
		end = size
		eof = true
	}
	return start, end, eof, nil
}

// ErrEmptyObject is returned when a source resolves to a zero-length object.
var ErrEmptyObject = errors.New("datasource: object is empty")

// CheckSize rejects empty objects; a columnar file always has a footer.
func CheckSize(name string, size int64) error {
	if size <= 0 {
		return fmt.Errorf("%s: %w", name, ErrEmptyObject)
	}
	return nil
}
