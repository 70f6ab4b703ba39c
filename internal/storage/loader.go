package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taxietl/internal/records"
)

// CopyFn abstracts a backend's bulk insert capability, usually Load.CopyFrom.
// It inserts rows aligned to columns and returns the number reported as
// inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains record sets from in, projects each row onto columns,
// regroups rows into batches of batchSize and calls copyFn per batch. It
// returns the total reported by copyFn and the first error.
//
// Every input batch must carry all of columns; the projection is resolved by
// name, so column order in the input does not matter. An empty columns slice
// loads the schema of the first batch as-is.
//
// A progress line is logged after every successful flush.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan records.RecordSet,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
		proj        projection
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		// rows may still be referenced by the backend; start a new slice
		batch = make([][]any, 0, batchSize)
		if err != nil {
			zap.S().Errorf("loader: copy failed after=%d total=%d err=%v", n, total, err)
			return err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		zap.S().Infof("loader: batch #%d rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
			batches, rps, n, total, now.Sub(start).Truncate(time.Millisecond))
		lastFlushTS, lastTotal = now, total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case rs, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				zap.S().Infof("loader: input closed batches=%d total_inserted=%d", batches, total)
				return total, nil
			}
			if len(columns) == 0 {
				columns = rs.Schema.Names()
			}
			if err := proj.resolve(columns, rs.Schema); err != nil {
				return total, err
			}
			for _, row := range rs.Rows {
				batch = append(batch, proj.apply(row))
				if len(batch) >= batchSize {
					if err := flush(); err != nil {
						return total, err
					}
				}
			}
		}
	}
}

// projection maps destination columns to positions in a batch schema. It is
// recomputed only when the schema changes.
type projection struct {
	schema   records.Schema
	idx      []int
	identity bool
}

func (p *projection) resolve(columns []string, s records.Schema) error {
	if p.idx != nil && s.SameNames(p.schema) {
		return nil
	}
	idx := make([]int, len(columns))
	identity := len(columns) == len(s)
	for i, c := range columns {
		j := s.Index(c)
		if j < 0 {
			return fmt.Errorf("loader: column %q not in batch schema", c)
		}
		idx[i] = j
		identity = identity && i == j
	}
	p.schema, p.idx, p.identity = s, idx, identity
	return nil
}

func (p *projection) apply(row []any) []any {
	if p.identity {
		return row
	}
	out := make([]any, len(p.idx))
	for i, j := range p.idx {
		out[i] = row[j]
	}
	return out
}
