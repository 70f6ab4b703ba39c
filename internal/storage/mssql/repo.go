// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. A load is one transaction: overwrite truncates the
// target inside it and each batch is bulk-copied straight into the table.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/azuread"
	"github.com/microsoft/go-mssqldb/msdsn"
	"go.uber.org/zap"

	"taxietl/internal/etlerr"
	"taxietl/internal/storage"
	msddl "taxietl/internal/storage/mssql/ddl"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// DriverName picks the database/sql driver for dsn. DSNs that request Azure
// AD authentication (fedauth=...) need the azuresql driver.
func DriverName(dsn string) string {
	if strings.Contains(strings.ToLower(dsn), "fedauth=") {
		return azuread.DriverName
	}
	return "sqlserver"
}

// Open validates dsn and opens a pinged *sql.DB. Dial and login failures
// are connectivity errors.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open(DriverName(dsn), dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, etlerr.Connectivity("mssql ping", err)
	}
	return db, nil
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := Open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// Begin opens a transaction; with overwrite the table is truncated inside it.
func (r *Repository) Begin(ctx context.Context, mode storage.WriteMode) (storage.Load, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, etlerr.WriteFailure("mssql begin tx", err)
	}
	if mode == storage.WriteOverwrite {
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+msddl.QuoteFQN(r.cfg.Table)); err != nil {
			_ = tx.Rollback()
			return nil, etlerr.WriteFailure("mssql truncate", err)
		}
		zap.S().Debugf("mssql: truncated table=%s", r.cfg.Table)
	}
	return &load{tx: tx, table: r.cfg.Table}, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return etlerr.WriteFailure("mssql exec", err)
	}
	return nil
}

type load struct {
	tx    *sql.Tx
	table string
}

// CopyFrom bulk-copies rows into the target table within the load's transaction.
func (l *load) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, etlerr.WriteFailure("mssql bulk", fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns)))
		}
	}

	stmt, err := l.tx.PrepareContext(ctx, mssql.CopyIn(l.table, mssql.BulkOptions{Tablock: true}, columns...))
	if err != nil {
		return 0, etlerr.WriteFailure("mssql prepare bulk", err)
	}
	args := make([]any, len(columns))
	for i, row := range rows {
		for j, v := range row {
			args[j] = toCopyVal(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = stmt.Close()
			return 0, etlerr.WriteFailure("mssql bulk", fmt.Errorf("row %d: %w", i, err))
		}
	}
	res, err := stmt.ExecContext(ctx) // flush
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, etlerr.WriteFailure("mssql bulk finalize", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, etlerr.WriteFailure("mssql rows affected", err)
	}
	return n, nil
}

func (l *load) Commit(context.Context) error {
	return etlerr.WriteFailure("mssql commit", l.tx.Commit())
}

func (l *load) Rollback(context.Context) error {
	if err := l.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

// toCopyVal widens narrow numerics to the types the bulk encoder converts
// for every numeric column type; other values pass through, nil stays nil.
func toCopyVal(v any) any {
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
