// Package parquet decodes Parquet objects into record batches.
//
// Open reads only the footer, so the schema of a remote file is available
// without scanning data pages. Stream then walks row groups in file order and
// emits RecordSets of at most batchSize rows.
//
// Only flat schemas are supported: every top-level column must be a
// non-repeated leaf. Nested or repeated columns are reported as a schema
// mismatch at Open time.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	pq "github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/deprecated"
	"github.com/parquet-go/parquet-go/format"

	"taxietl/internal/etlerr"
	"taxietl/internal/records"
)

// DefaultBatchSize is used when Stream is given a non-positive size.
const DefaultBatchSize = 10000

// Options tune the reader.
type Options struct {
	// ReadBufferSize is the per-column read buffer. Zero keeps the library
	// default.
	ReadBufferSize int
}

// column describes how one leaf decodes into a records.Kind.
type column struct {
	field  records.Field
	decode func(pq.Value) any
}

// File is an opened Parquet object.
type File struct {
	f      *pq.File
	schema records.Schema
	cols   []column
	// leafPos maps a leaf column index to its position in schema.
	leafPos map[int]int
}

// Open reads the footer of the object r of the given size.
func Open(r io.ReaderAt, size int64, opts Options) (*File, error) {
	fileOpts := []pq.FileOption{
		pq.SkipPageIndex(true),
		pq.SkipBloomFilters(true),
	}
	if opts.ReadBufferSize > 0 {
		fileOpts = append(fileOpts, pq.ReadBufferSize(opts.ReadBufferSize))
	}
	f, err := pq.OpenFile(r, size, fileOpts...)
	if err != nil {
		if errors.Is(err, etlerr.ErrConnectivity) {
			return nil, err
		}
		return nil, fmt.Errorf("parquet: open footer: %w", err)
	}

	pf := &File{f: f, leafPos: map[int]int{}}
	var unsupported []string
	for _, c := range f.Root().Columns() {
		col, ok := describe(c)
		if !ok {
			unsupported = append(unsupported, c.Name())
			continue
		}
		pf.leafPos[c.Index()] = len(pf.cols)
		pf.cols = append(pf.cols, col)
		pf.schema = append(pf.schema, col.field)
	}
	if len(unsupported) > 0 {
		return nil, fmt.Errorf("parquet: %w", &etlerr.SchemaMismatchError{Unsupported: unsupported})
	}
	return pf, nil
}

// Schema returns the file's columns in file order.
func (p *File) Schema() records.Schema { return p.schema }

// NumRows returns the row count recorded in the footer.
func (p *File) NumRows() int64 { return p.f.NumRows() }

// NumRowGroups returns the number of row groups.
func (p *File) NumRowGroups() int { return len(p.f.RowGroups()) }

// CreatedBy returns the writer string from the footer, if any.
func (p *File) CreatedBy() string { return p.f.Metadata().CreatedBy }

// Stream reads every row group in order and sends RecordSets of at most
// batchSize rows to out. It returns when the file is exhausted, on the first
// error, or when ctx is done. The caller closes out.
func (p *File) Stream(ctx context.Context, batchSize int, out chan<- records.RecordSet) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for gi, rg := range p.f.RowGroups() {
		if err := p.streamGroup(ctx, gi, rg, batchSize, out); err != nil {
			return err
		}
	}
	return nil
}

func (p *File) streamGroup(ctx context.Context, gi int, rg pq.RowGroup, batchSize int, out chan<- records.RecordSet) error {
	rows := rg.Rows()
	defer rows.Close()

	buf := make([]pq.Row, min(batchSize, 1024))
	batch := make([][]any, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case out <- records.RecordSet{Schema: p.schema, Rows: batch}:
		case <-ctx.Done():
			return ctx.Err()
		}
		batch = make([][]any, 0, batchSize)
		return nil
	}

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			batch = append(batch, p.decodeRow(row))
			if len(batch) == batchSize {
				if ferr := flush(); ferr != nil {
					return ferr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return flush()
			}
			if errors.Is(err, etlerr.ErrConnectivity) {
				return err
			}
			return fmt.Errorf("parquet: row group %d: %w", gi, err)
		}
		if n == 0 {
			return flush()
		}
	}
}

func (p *File) decodeRow(row pq.Row) []any {
	out := make([]any, len(p.cols))
	for _, v := range row {
		pos, ok := p.leafPos[v.Column()]
		if !ok || v.IsNull() {
			continue
		}
		out[pos] = p.cols[pos].decode(v)
	}
	return out
}

// ReadAll reads the whole file into one RecordSet. Meant for small files and
// tests; the pipeline uses Stream.
func (p *File) ReadAll(ctx context.Context) (records.RecordSet, error) {
	rs := records.RecordSet{Schema: p.schema}
	ch := make(chan records.RecordSet, 1)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		errc <- p.Stream(ctx, DefaultBatchSize, ch)
	}()
	for b := range ch {
		rs.Rows = append(rs.Rows, b.Rows...)
	}
	return rs, <-errc
}

// describe maps a top-level column to a field and decoder. It reports false
// for groups and repeated leaves.
func describe(c *pq.Column) (column, bool) {
	if !c.Leaf() || c.Repeated() {
		return column{}, false
	}
	t := c.Type()
	lt := t.LogicalType()
	var ct deprecated.ConvertedType = -1
	if p := t.ConvertedType(); p != nil {
		ct = *p
	}

	f := records.Field{Name: c.Name(), Nullable: c.Optional()}
	var dec func(pq.Value) any

	switch t.Kind() {
	case pq.Boolean:
		f.Kind, dec = records.KindBool, func(v pq.Value) any { return v.Boolean() }
	case pq.Int32:
		if (lt != nil && lt.Date != nil) || ct == deprecated.Date {
			f.Kind, dec = records.KindDate, func(v pq.Value) any {
				return time.Unix(int64(v.Int32())*86400, 0).UTC()
			}
		} else {
			f.Kind, dec = records.KindInt32, func(v pq.Value) any { return v.Int32() }
		}
	case pq.Int64:
		if unit, ok := timestampUnit(lt, ct); ok {
			f.Kind, dec = records.KindTimestamp, func(v pq.Value) any { return fromUnit(v.Int64(), unit) }
		} else {
			f.Kind, dec = records.KindInt64, func(v pq.Value) any { return v.Int64() }
		}
	case pq.Int96:
		f.Kind, dec = records.KindTimestamp, func(v pq.Value) any { return fromInt96(v.Int96()) }
	case pq.Float:
		f.Kind, dec = records.KindFloat32, func(v pq.Value) any { return v.Float() }
	case pq.Double:
		f.Kind, dec = records.KindFloat64, func(v pq.Value) any { return v.Double() }
	case pq.ByteArray, pq.FixedLenByteArray:
		if isString(lt, ct) {
			f.Kind, dec = records.KindString, func(v pq.Value) any { return string(v.ByteArray()) }
		} else {
			f.Kind, dec = records.KindBytes, func(v pq.Value) any {
				return append([]byte(nil), v.ByteArray()...)
			}
		}
	default:
		return column{}, false
	}
	return column{field: f, decode: dec}, true
}

func isString(lt *format.LogicalType, ct deprecated.ConvertedType) bool {
	if lt != nil && (lt.UTF8 != nil || lt.Enum != nil || lt.Json != nil) {
		return true
	}
	return ct == deprecated.UTF8 || ct == deprecated.Enum || ct == deprecated.Json
}

func timestampUnit(lt *format.LogicalType, ct deprecated.ConvertedType) (time.Duration, bool) {
	if lt != nil && lt.Timestamp != nil {
		u := lt.Timestamp.Unit
		switch {
		case u.Millis != nil:
			return time.Millisecond, true
		case u.Micros != nil:
			return time.Microsecond, true
		case u.Nanos != nil:
			return time.Nanosecond, true
		}
	}
	switch ct {
	case deprecated.TimestampMillis:
		return time.Millisecond, true
	case deprecated.TimestampMicros:
		return time.Microsecond, true
	}
	return 0, false
}

func fromUnit(n int64, unit time.Duration) time.Time {
	switch unit {
	case time.Millisecond:
		return time.UnixMilli(n).UTC()
	case time.Microsecond:
		return time.UnixMicro(n).UTC()
	default:
		return time.Unix(0, n).UTC()
	}
}

// julianUnixEpoch is the Julian day number of 1970-01-01.
const julianUnixEpoch = 2440588

func fromInt96(i deprecated.Int96) time.Time {
	nanos := int64(uint64(i[1])<<32 | uint64(i[0]))
	days := int64(i[2]) - julianUnixEpoch
	return time.Unix(days*86400, nanos).UTC()
}
