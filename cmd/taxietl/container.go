// Package main wires the load job end-to-end: open the source object, read
// the Parquet footer, compile the normalize mapping against it, then stream
// row groups through the normalizer into one transactional warehouse load.
// This file keeps the CLI layer thin: it depends only on storage-agnostic
// interfaces and never imports database drivers directly.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taxietl/internal/config"
	"taxietl/internal/datasource"
	"taxietl/internal/etlerr"
	"taxietl/internal/metrics"
	"taxietl/internal/normalize"
	"taxietl/internal/parser/parquet"
	"taxietl/internal/records"
	"taxietl/internal/storage"
)

// rollbackTimeout bounds Rollback after the run context was cancelled.
const rollbackTimeout = time.Minute

// runtimeConfig contains the resolved batching and buffering configuration
// for a run. Values come from the pipeline file with environment fallbacks.
type runtimeConfig struct {
	batchSize  int
	bufferSize int
}

// summary is what a run reports at the end.
type summary struct {
	Read        int64
	Inserted    int64
	Batches     int64
	Stats       normalize.Stats
	Fingerprint uint64
	Elapsed     time.Duration
}

// Function variables used to introduce test seams.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	openSourceFn = openSource
)

// newRuntimeConfig resolves the runtime configuration for a run. A positive
// value in the pipeline file wins; otherwise ETL_BATCH_SIZE and ETL_CH_BUFFER
// are consulted. The channel buffer counts batches, not rows.
func newRuntimeConfig(spec config.Pipeline) runtimeConfig {
	return runtimeConfig{
		batchSize:  pickInt(spec.Runtime.BatchSize, getenvInt("ETL_BATCH_SIZE", 10000)),
		bufferSize: pickInt(spec.Runtime.ChannelBuffer, getenvInt("ETL_CH_BUFFER", 4)),
	}
}

// compilePlan builds the mapping from the normalize transform options and
// resolves it against the file schema.
func compilePlan(spec config.Pipeline, in records.Schema) (*normalize.Plan, error) {
	m, opts, err := normalize.FromOptions(spec.Normalize())
	if err != nil {
		return nil, err
	}
	plan, err := normalize.Compile(in, m, opts)
	if err != nil {
		return nil, err
	}
	if p := plan.Passthrough(); len(p) > 0 {
		zap.S().Infof("normalize: passthrough columns=%v", p)
	}
	if d := plan.Dropped(); len(d) > 0 {
		zap.S().Infof("normalize: dropped columns=%v", d)
	}
	return plan, nil
}

// storageConfig maps the pipeline onto the backend-neutral repository config.
func storageConfig(spec config.Pipeline, sec config.Secrets) storage.Config {
	return storage.Config{
		Kind:    spec.Storage.Kind,
		DSN:     spec.Storage.DB.DSN,
		Table:   spec.Storage.DB.Table,
		Columns: spec.Storage.DB.Columns,
		Staging: storage.StagingConfig{
			URL:        spec.Storage.Staging.URL,
			Identity:   spec.Storage.Staging.Identity,
			AccountKey: sec.StagingKey(),
			Keep:       spec.Storage.Staging.Keep,
		},
	}
}

// runStreamed executes source -> parquet -> normalize -> storage for one
// object. spec must be validated and have its secrets applied.
//
// Stages run in an errgroup connected by bounded channels of RecordSets, so
// memory stays around batchSize x bufferSize rows per stage. The first error
// cancels the other stages and rolls the load back; with overwrite the table
// then keeps its previous contents.
func runStreamed(ctx context.Context, spec config.Pipeline, sec config.Secrets) (summary, error) {
	var sum summary
	start := time.Now()
	rt := newRuntimeConfig(spec)
	job := spec.Job

	zap.S().Infof("stream runtime: batch=%d buffer=%d", rt.batchSize, rt.bufferSize)

	obj, err := openSourceFn(ctx, spec, sec)
	if err != nil {
		return sum, fmt.Errorf("source open: %w", err)
	}
	defer obj.Close()

	pf, err := parquet.Open(obj, obj.Size(), parquet.Options{})
	if err != nil {
		return sum, fmt.Errorf("read %s: %w", obj.Name(), err)
	}
	zap.S().Infof("parquet: file=%s rows=%d row_groups=%d columns=%d",
		obj.Name(), pf.NumRows(), pf.NumRowGroups(), len(pf.Schema()))

	plan, err := compilePlan(spec, pf.Schema())
	if err != nil {
		return sum, err
	}

	mode, err := storage.ParseWriteMode(spec.Storage.DB.Mode)
	if err != nil {
		return sum, err
	}

	zap.S().Infof("storage: kind=%s table=%s mode=%s dsn=%s",
		spec.Storage.Kind, spec.Storage.DB.Table, mode, config.RedactDSN(spec.Storage.DB.DSN))
	repo, err := newRepositoryFn(ctx, storageConfig(spec, sec))
	if err != nil {
		return sum, fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	if spec.Storage.DB.AutoCreateTable {
		zap.S().Infof("storage: ensuring table %s", spec.Storage.DB.Table)
		if err := storage.EnsureTable(ctx, spec.Storage.Kind, repo, spec.Storage.DB.Table, plan.Schema(), spec.Storage.DB.Columns); err != nil {
			return sum, err
		}
	}

	load, err := repo.Begin(ctx, mode)
	if err != nil {
		return sum, err
	}

	var batches atomic.Int64
	copyFn := func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		n, err := load.CopyFrom(ctx, columns, rows)
		if err == nil {
			batches.Add(1)
			metrics.RecordBatches(job, 1)
			metrics.RecordRows(job, metrics.KindInserted, n)
		}
		return n, err
	}

	fp := records.NewFingerprint()
	rawCh := make(chan records.RecordSet, rt.bufferSize)
	normCh := make(chan records.RecordSet, rt.bufferSize)
	g, gctx := errgroup.WithContext(ctx)

	// 1) Reader: row groups -> raw batches.
	g.Go(func() error {
		defer close(rawCh)
		t0 := time.Now()
		err := pf.Stream(gctx, rt.batchSize, rawCh)
		metrics.RecordStep(job, "read", err, time.Since(t0))
		if err != nil {
			return fmt.Errorf("read %s: %w", obj.Name(), err)
		}
		return nil
	})

	// 2) Normalizer: rename, cast, fill. Single goroutine keeps row order.
	g.Go(func() (err error) {
		defer close(normCh)
		var busy time.Duration
		defer func() { metrics.RecordStep(job, "normalize", err, busy) }()

		for rs := range rawCh {
			t0 := time.Now()
			out, st, aerr := plan.Apply(rs)
			busy += time.Since(t0)
			if aerr != nil {
				return aerr
			}
			sum.Stats.Merge(st)
			fp.Add(out)
			recordBatchStats(job, st)

			select {
			case normCh <- out:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// 3) Loader: rebatch and copy into the open load.
	g.Go(func() error {
		t0 := time.Now()
		n, err := storage.LoadBatches(gctx, spec.Storage.DB.Columns, normCh, rt.batchSize, copyFn)
		sum.Inserted = n
		metrics.RecordStep(job, "write", err, time.Since(t0))
		return err
	})

	err = g.Wait()
	sum.Read = sum.Stats.Rows
	sum.Batches = batches.Load()
	sum.Fingerprint = fp.Sum64()
	if err == nil && sum.Inserted != sum.Read {
		err = etlerr.WriteFailure("load", fmt.Errorf("read %d rows but loaded %d", sum.Read, sum.Inserted))
	}
	if err != nil {
		rollback(load)
		return sum, err
	}

	t0 := time.Now()
	err = load.Commit(ctx)
	metrics.RecordStep(job, "commit", err, time.Since(t0))
	if err != nil {
		rollback(load)
		return sum, err
	}

	sum.Elapsed = time.Since(start)
	if cr, ok := obj.(*datasource.CachedReaderAt); ok {
		hits, misses := cr.Stats()
		zap.S().Debugf("source: cache hits=%d misses=%d", hits, misses)
	}
	logSummary(sum)
	return sum, nil
}

// rollback discards the load with a fresh context; the run context may
// already be cancelled.
func rollback(load storage.Load) {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()
	if err := load.Rollback(ctx); err != nil {
		zap.S().Errorf("storage: rollback failed: %v", err)
		return
	}
	zap.S().Warnf("storage: load rolled back; table left unchanged")
}

// recordBatchStats reports one batch's normalize counters.
func recordBatchStats(job string, st normalize.Stats) {
	metrics.RecordRows(job, metrics.KindRead, st.Rows)
	for col, n := range st.CoercionNulls {
		metrics.RecordColumn(job, col, metrics.KindCoercionNull, n)
	}
	for col, n := range st.Filled {
		metrics.RecordColumn(job, col, metrics.KindFilled, n)
	}
	if n := st.TotalCoercionNulls(); n > 0 {
		metrics.RecordRows(job, metrics.KindCoercionNull, n)
	}
	if n := st.TotalFilled(); n > 0 {
		metrics.RecordRows(job, metrics.KindFilled, n)
	}
}

// logSummary prints final statistics, per-column counters and the first
// coercion failures.
func logSummary(s summary) {
	zap.S().Infof(
		"summary: read=%d inserted=%d batches=%d coercion_nulls=%d filled=%d fingerprint=%016x elapsed=%s",
		s.Read,
		s.Inserted,
		s.Batches,
		s.Stats.TotalCoercionNulls(),
		s.Stats.TotalFilled(),
		s.Fingerprint,
		s.Elapsed.Truncate(time.Millisecond),
	)
	for _, col := range sortedKeys(s.Stats.CoercionNulls) {
		zap.S().Infof("  coercion_null column=%s count=%d", col, s.Stats.CoercionNulls[col])
	}
	for _, col := range sortedKeys(s.Stats.Filled) {
		zap.S().Infof("  filled column=%s count=%d", col, s.Stats.Filled[col])
	}
	for i, c := range s.Stats.Samples {
		zap.S().Infof("  #%03d: %v", i+1, c)
	}
}

func sortedKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
