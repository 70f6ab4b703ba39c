//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"taxietl/internal/storage"
)

// getTestDSN reads the MSSQL_TEST_DSN environment variable.
// If it is empty, the caller should skip the test.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

// TestOverwriteIntegration loads the same rows twice in overwrite mode
// against a real SQL Server and expects only the second load to remain.
func TestOverwriteIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const table = "dbo.repo_overwrite_test"
	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn, Table: table})
	if err != nil {
		t.Fatalf("NewRepository() error = %v, want nil", err)
	}
	defer closeFn()

	_ = repo.Exec(ctx, "IF OBJECT_ID('dbo.repo_overwrite_test', 'U') IS NOT NULL DROP TABLE dbo.repo_overwrite_test;")
	if err := repo.Exec(ctx, `
		CREATE TABLE dbo.repo_overwrite_test (
			id INT NOT NULL,
			name NVARCHAR(100) NULL
		);`); err != nil {
		t.Fatalf("Exec(CREATE TABLE) error = %v", err)
	}

	rows := [][]any{{int32(1), "alice"}, {int32(2), nil}, {int32(3), "carol"}}
	for run := 0; run < 2; run++ {
		ld, err := repo.Begin(ctx, storage.WriteOverwrite)
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		n, err := ld.CopyFrom(ctx, []string{"id", "name"}, rows)
		if err != nil {
			_ = ld.Rollback(ctx)
			t.Fatalf("CopyFrom() error = %v", err)
		}
		if n != int64(len(rows)) {
			t.Fatalf("CopyFrom() inserted = %d, want %d", n, len(rows))
		}
		if err := ld.Commit(ctx); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}

	var count int
	if err := repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dbo.repo_overwrite_test").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != len(rows) {
		t.Fatalf("rows after two overwrite loads = %d, want %d", count, len(rows))
	}
}
