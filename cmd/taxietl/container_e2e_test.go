package main

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxietl/internal/config"
	"taxietl/internal/etlerr"
	"taxietl/internal/parser/parquet/parquettest"
	_ "taxietl/internal/storage/sqlite" // register "sqlite" backend for tests
)

// openSQL opens a raw *sql.DB to the same DSN so we can verify loaded rows.
func openSQL(tb testing.TB, dsn string) *sql.DB {
	tb.Helper()
	db, err := sql.Open("sqlite", dsn)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// buildPipeline is a minimal working pipeline: local parquet file into a
// sqlite table created from the normalized schema.
func buildPipeline(dsn, table, parquetPath string) config.Pipeline {
	return config.Pipeline{
		Job: "yellow_tripdata_test",
		Source: config.Source{
			Kind: "file",
			File: config.SourceFile{Path: parquetPath},
		},
		Parser: config.Parser{Kind: "parquet"},
		Transform: []config.Transform{
			{Kind: "normalize", Options: config.Options{"preset": "yellow_tripdata"}},
		},
		Storage: config.Storage{
			Kind: "sqlite",
			DB: config.DBConfig{
				DSN:             dsn,
				Table:           table,
				AutoCreateTable: true,
			},
		},
		Runtime: config.RuntimeConfig{BatchSize: 5, ChannelBuffer: 2},
	}
}

// TestRunStreamed_SQLiteOverwriteTwice loads the same file twice; the second
// run must replace, not append.
func TestRunStreamed_SQLiteOverwriteTwice(t *testing.T) {
	dir := t.TempDir()
	src := parquettest.WriteYellow(t, dir, 12, 4)
	dsn := filepath.Join(dir, "taxi.db")
	spec := buildPipeline(dsn, "yellow_tripdata", src)

	first, err := runStreamed(context.Background(), spec, config.Secrets{})
	require.NoError(t, err)
	assert.Equal(t, int64(12), first.Read)
	assert.Equal(t, int64(12), first.Inserted)
	assert.Equal(t, int64(3), first.Batches, "12 rows in batches of 5")
	// rows 4 and 9 have no passenger_count
	assert.Equal(t, int64(2), first.Stats.Filled["passenger_count"])
	assert.Zero(t, first.Stats.TotalCoercionNulls())

	second, err := runStreamed(context.Background(), spec, config.Secrets{})
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	db := openSQL(t, dsn)
	var n, zeros, nullRate int
	err = db.QueryRow(`SELECT COUNT(*),
		SUM(CASE WHEN passenger_count = 0 THEN 1 ELSE 0 END),
		SUM(CASE WHEN rate_code_id IS NULL THEN 1 ELSE 0 END)
		FROM yellow_tripdata`).Scan(&n, &zeros, &nullRate)
	require.NoError(t, err)
	assert.Equal(t, 12, n, "overwrite must not duplicate rows")
	assert.Equal(t, 2, zeros, "null passenger_count is filled with 0")
	assert.Equal(t, 2, nullRate, "rate_code_id keeps its nulls")

	var vendor int
	require.NoError(t, db.QueryRow(`SELECT vendor_id FROM yellow_tripdata ORDER BY fare_amount LIMIT 1`).Scan(&vendor))
	assert.Equal(t, 1, vendor)
}

// TestRunStreamed_SchemaMismatchLeavesTable checks a mapping that does not
// fit the file fails before the table is touched.
func TestRunStreamed_SchemaMismatchLeavesTable(t *testing.T) {
	dir := t.TempDir()
	src := parquettest.WriteYellow(t, dir, 3, 0)
	dsn := filepath.Join(dir, "taxi.db")
	spec := buildPipeline(dsn, "yellow_tripdata", src)

	_, err := runStreamed(context.Background(), spec, config.Secrets{})
	require.NoError(t, err)

	spec.Transform[0].Options["rename"] = map[string]any{"cbd_congestion_fee": "cbd_fee"}
	_, err = runStreamed(context.Background(), spec, config.Secrets{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, etlerr.ErrSchemaMismatch), "got %v", err)
	assert.Equal(t, etlerr.ExitSchemaMismatch, etlerr.ExitCode(err))

	var n int
	require.NoError(t, openSQL(t, dsn).QueryRow(`SELECT COUNT(*) FROM yellow_tripdata`).Scan(&n))
	assert.Equal(t, 3, n)
}

// TestRunStreamed_PartitionedFileSource resolves the object from a
// dataset/year/month layout under a base directory.
func TestRunStreamed_PartitionedFileSource(t *testing.T) {
	base := t.TempDir()
	parquettest.WriteYellow(t, filepath.Join(base, "yellow", "2025", "01"), 2, 0)

	spec := buildPipeline(filepath.Join(t.TempDir(), "taxi.db"), "yellow_tripdata", base)
	spec.Source.Partition = &config.Partition{Dataset: "yellow", Year: 2025, Month: 1}

	sum, err := runStreamed(context.Background(), spec, config.Secrets{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Inserted)
}
