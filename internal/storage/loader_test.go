package storage

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"taxietl/internal/records"
)

var twoCols = records.Schema{
	{Name: "c1", Kind: records.KindInt32},
	{Name: "c2", Kind: records.KindString, Nullable: true},
}

// feed sends n rows split into record sets of per rows and closes the channel.
func feed(s records.Schema, n, per int, row func(i int) []any) <-chan records.RecordSet {
	ch := make(chan records.RecordSet, n/per+1)
	rs := records.RecordSet{Schema: s}
	for i := 0; i < n; i++ {
		rs.Rows = append(rs.Rows, row(i))
		if len(rs.Rows) == per {
			ch <- rs
			rs = records.RecordSet{Schema: s}
		}
	}
	if len(rs.Rows) > 0 {
		ch <- rs
	}
	close(ch)
	return ch
}

// TestLoadBatches_Basic verifies rows are regrouped into batches independent
// of the input set sizes, and the total equals the sum of copyFn returns.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	in := feed(twoCols, 7, 2, func(i int) []any { return []any{int32(i), "x"} })

	var calls int32
	var sizes []int
	copyFn := func(_ context.Context, cols []string, rows [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		sizes = append(sizes, len(rows))
		if !reflect.DeepEqual(cols, []string{"c1", "c2"}) {
			t.Errorf("columns = %v", cols)
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), nil, in, 3, copyFn)
	if err != nil {
		t.Fatalf("LoadBatches error: %v", err)
	}
	if total != 7 {
		t.Fatalf("total rows %d, want 7", total)
	}
	if !reflect.DeepEqual(sizes, []int{3, 3, 1}) {
		t.Fatalf("batch sizes %v, want [3 3 1]", sizes)
	}
}

// TestLoadBatches_Projection checks destination columns are picked by name.
func TestLoadBatches_Projection(t *testing.T) {
	t.Parallel()

	in := feed(twoCols, 2, 2, func(i int) []any { return []any{int32(i), "v"} })

	var got [][]any
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		got = append(got, rows...)
		return int64(len(rows)), nil
	}
	if _, err := LoadBatches(context.Background(), []string{"c2", "c1"}, in, 10, copyFn); err != nil {
		t.Fatalf("LoadBatches error: %v", err)
	}
	want := [][]any{{"v", int32(0)}, {"v", int32(1)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}

	in = feed(twoCols, 1, 1, func(i int) []any { return []any{int32(i), nil} })
	_, err := LoadBatches(context.Background(), []string{"c3"}, in, 10, copyFn)
	if err == nil || err.Error() != `loader: column "c3" not in batch schema` {
		t.Fatalf("unknown column error = %v", err)
	}
}

// TestLoadBatches_ErrorPropagation ensures the first copy error is propagated
// and processing stops after that batch.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	in := feed(twoCols, 5, 5, func(i int) []any { return []any{int32(i), nil} })

	wantErr := errors.New("copy failed")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), nil, in, 2, copyFn)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want error %v, got %v", wantErr, err)
	}
	if total != 2 || batches != 2 {
		t.Fatalf("total=%d batches=%d, want 2 and 2", total, batches)
	}
}

// TestLoadBatches_ContextCancel checks the loader exits on context cancellation.
func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan records.RecordSet, 1)
	in <- records.RecordSet{Schema: twoCols, Rows: [][]any{{int32(1), "a"}}}

	copyFn := func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(2 * time.Second):
			return int64(len(rows)), nil
		}
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, nil, in, 2, copyFn)
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected cancellation error, got nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}

func TestLoadBatches_BadArgs(t *testing.T) {
	t.Parallel()

	if _, err := LoadBatches(context.Background(), nil, nil, 0, nil); err == nil {
		t.Fatal("batchSize 0 accepted")
	}
	if _, err := LoadBatches(context.Background(), nil, nil, 1, nil); err == nil {
		t.Fatal("nil copyFn accepted")
	}
}
