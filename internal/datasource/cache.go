package datasource

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Default cache geometry: 64 blocks of 1 MiB.
const (
	DefaultBlockSize = 1 << 20
	DefaultBlocks    = 64
)

// CachedReaderAt serves reads from fixed-size blocks of an underlying Object,
// keeping the most recently used blocks in memory. Parquet readers touch the
// footer and each column chunk header many times; the cache turns those into
// one request per block.
type CachedReaderAt struct {
	Object
	blockSize int64
	blocks    *lru.Cache[int64, []byte]

	hits, misses atomic.Int64
}

// NewCachedReaderAt wraps obj. Non-positive sizes select the defaults.
func NewCachedReaderAt(obj Object, blockSize, blocks int) (*CachedReaderAt, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if blocks <= 0 {
		blocks = DefaultBlocks
	}
	c, err := lru.New[int64, []byte](blocks)
	if err != nil {
		return nil, fmt.Errorf("datasource: block cache: %w", err)
	}
	return &CachedReaderAt{Object: obj, blockSize: int64(blockSize), blocks: c}, nil
}

// ReadAt implements io.ReaderAt over cached blocks.
func (c *CachedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("datasource: negative offset")
	}
	size := c.Size()
	if off >= size {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && off < size {
		idx := off / c.blockSize
		blk, err := c.block(idx)
		if err != nil {
			return n, err
		}
		within := off - idx*c.blockSize
		k := copy(p[n:], blk[within:])
		n += k
		off += int64(k)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (c *CachedReaderAt) block(idx int64) ([]byte, error) {
	if b, ok := c.blocks.Get(idx); ok {
		c.hits.Add(1)
		return b, nil
	}
	c.misses.Add(1)
	start := idx * c.blockSize
	length := c.blockSize
	if rest := c.Size() - start; rest < length {
		length = rest
	}
	b := make([]byte, length)
	n, err := c.Object.ReadAt(b, start)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return nil, err
	}
	c.blocks.Add(idx, b)
	return b, nil
}

// Stats returns cache hits and misses.
func (c *CachedReaderAt) Stats() (hits, misses int64) { return c.hits.Load(), c.misses.Load() }
