package storage

import (
	"context"
	"fmt"
	"sync"

	"taxietl/internal/records"
)

// DDLRenderer renders a CREATE TABLE script for table with the given columns
// in a backend's dialect. The script must be a no-op when the table exists.
// columns optionally selects and orders the schema's fields.
type DDLRenderer func(table string, s records.Schema, columns []string) (string, error)

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLRenderer{}
)

// RegisterDDL registers (or replaces) the DDL renderer for kind. Backends
// call it from init.
func RegisterDDL(kind string, fn DDLRenderer) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// CreateTableSQL renders the CREATE TABLE script for kind.
func CreateTableSQL(kind, table string, s records.Schema, columns []string) (string, error) {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no DDL renderer registered for storage.kind=%q", kind)
	}
	return fn(table, s, columns)
}

// EnsureTable creates table from s through repo unless it already exists.
func EnsureTable(ctx context.Context, kind string, repo Repository, table string, s records.Schema, columns []string) error {
	sql, err := CreateTableSQL(kind, table, s, columns)
	if err != nil {
		return fmt.Errorf("render DDL: %w", err)
	}
	if err := repo.Exec(ctx, sql); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	return nil
}
