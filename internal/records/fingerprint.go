package records

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zeebo/xxh3"
)

// Fingerprint accumulates an order-sensitive xxh3 digest over rows. Two runs
// that load the same values in the same order report the same Sum64.
type Fingerprint struct {
	h    *xxh3.Hasher
	rows int64
	buf  [8]byte
}

// NewFingerprint returns an empty fingerprint.
func NewFingerprint() *Fingerprint { return &Fingerprint{h: xxh3.New()} }

// Add folds every row of rs into the digest.
func (f *Fingerprint) Add(rs RecordSet) {
	for _, row := range rs.Rows {
		for _, v := range row {
			f.value(v)
		}
		// row separator
		_, _ = f.h.Write([]byte{0x1e})
		f.rows++
	}
}

// Rows returns how many rows were added.
func (f *Fingerprint) Rows() int64 { return f.rows }

// Sum64 returns the current digest.
func (f *Fingerprint) Sum64() uint64 { return f.h.Sum64() }

func (f *Fingerprint) value(v any) {
	switch x := v.(type) {
	case nil:
		f.tag(0)
	case bool:
		f.tag(1)
		if x {
			f.u64(1)
		} else {
			f.u64(0)
		}
	case int32:
		f.tag(2)
		f.u64(uint64(int64(x)))
	case int64:
		f.tag(3)
		f.u64(uint64(x))
	case float32:
		f.tag(4)
		f.u64(math.Float64bits(float64(x)))
	case float64:
		f.tag(5)
		f.u64(math.Float64bits(x))
	case string:
		f.tag(6)
		f.u64(uint64(len(x)))
		_, _ = f.h.WriteString(x)
	case []byte:
		f.tag(7)
		f.u64(uint64(len(x)))
		_, _ = f.h.Write(x)
	case time.Time:
		f.tag(8)
		f.u64(uint64(x.UnixNano()))
	default:
		f.tag(0xff)
	}
}

func (f *Fingerprint) tag(t byte) { _, _ = f.h.Write([]byte{t}) }

func (f *Fingerprint) u64(v uint64) {
	binary.LittleEndian.PutUint64(f.buf[:], v)
	_, _ = f.h.Write(f.buf[:])
}
