// Package storage contains warehouse-agnostic contracts and utilities.
//
// A backend registers a Factory for its kind at init time; callers obtain a
// Repository with New and never import drivers directly. Writes happen inside
// a Load: Begin opens it (for overwrite it also empties the table inside the
// same transaction), CopyFrom is called once per batch, and Commit makes the
// whole load visible at once. Rollback leaves the table as it was.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// WriteMode selects what happens to rows already in the table.
type WriteMode string

const (
	// WriteOverwrite replaces the table contents with the loaded rows.
	WriteOverwrite WriteMode = "overwrite"
	// WriteAppend keeps existing rows.
	WriteAppend WriteMode = "append"
)

// ParseWriteMode maps a config value onto a WriteMode. Empty means overwrite.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", WriteOverwrite:
		return WriteOverwrite, nil
	case WriteAppend:
		return WriteAppend, nil
	}
	return "", fmt.Errorf("storage: unknown write mode %q", s)
}

// Config is the backend-neutral repository configuration.
type Config struct {
	Kind    string
	DSN     string
	Table   string
	Columns []string

	// Staging is used by backends that load from object storage.
	Staging StagingConfig
}

// StagingConfig points at the blob prefix a warehouse reads staged files from.
type StagingConfig struct {
	URL string
	// Identity is "storage_account_key" or "managed_identity".
	Identity string
	// AccountKey authenticates uploads and, with the storage_account_key
	// identity, the warehouse COPY.
	AccountKey string
	Keep       bool
}

// Repository is an open connection to a warehouse table.
type Repository interface {
	// Begin starts a load. With WriteOverwrite the table is emptied as part
	// of the same transaction.
	Begin(ctx context.Context, mode WriteMode) (Load, error)
	// Exec runs a statement outside any load, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Load is one transactional write.
type Load interface {
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
