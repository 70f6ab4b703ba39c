// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver. SQLite has no bulk-load API,
// so a Load runs prepared INSERTs inside one transaction; overwrite empties
// the table with DELETE in that same transaction.
//
// The backend exists for local runs and tests; it is not a warehouse.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taxietl/internal/etlerr"
	"taxietl/internal/storage"
	sqliteddl "taxietl/internal/storage/sqlite/ddl"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// Open opens a database/sql handle on the modernc driver.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("sqlite", dsn)
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// a single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, etlerr.Connectivity("sqlite ping", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { db.Close() }, nil
}

// Begin starts a transaction. With overwrite the table is emptied first.
func (r *Repository) Begin(ctx context.Context, mode storage.WriteMode) (storage.Load, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, etlerr.WriteFailure("sqlite begin", err)
	}
	if mode == storage.WriteOverwrite {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+sqliteddl.QuoteFQN(r.cfg.Table)); err != nil {
			_ = tx.Rollback()
			return nil, etlerr.WriteFailure("sqlite delete", err)
		}
	}
	return &load{tx: tx, table: r.cfg.Table, stmts: map[string]*sql.Stmt{}}, nil
}

// Exec executes a statement (typically DDL) outside any load.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return etlerr.WriteFailure("sqlite exec", err)
	}
	return nil
}

// load is one transaction. Prepared INSERTs are cached per column list.
type load struct {
	tx    *sql.Tx
	table string
	stmts map[string]*sql.Stmt
}

func (l *load) stmt(ctx context.Context, columns []string) (*sql.Stmt, error) {
	key := strings.Join(columns, "\x00")
	if s, ok := l.stmts[key]; ok {
		return s, nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sqliteddl.QuoteIdent(c)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqliteddl.QuoteFQN(l.table),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)
	s, err := l.tx.PrepareContext(ctx, q)
	if err != nil {
		return nil, err
	}
	l.stmts[key] = s
	return s, nil
}

// CopyFrom inserts rows aligned to columns.
func (l *load) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	s, err := l.stmt(ctx, columns)
	if err != nil {
		return 0, etlerr.WriteFailure("sqlite prepare insert", err)
	}
	args := make([]any, len(columns))
	var inserted int64
	for i, row := range rows {
		if len(row) != len(columns) {
			return inserted, etlerr.WriteFailure("sqlite insert", fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns)))
		}
		for j, v := range row {
			args[j] = toSQLiteVal(v)
		}
		if _, err := s.ExecContext(ctx, args...); err != nil {
			return inserted, etlerr.WriteFailure("sqlite insert", fmt.Errorf("row %d: %w", i, err))
		}
		inserted++
	}
	return inserted, nil
}

func (l *load) Commit(context.Context) error {
	return etlerr.WriteFailure("sqlite commit", l.tx.Commit())
}

func (l *load) Rollback(context.Context) error {
	err := l.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// toSQLiteVal widens values to the types the driver binds natively.
func toSQLiteVal(v any) any {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
