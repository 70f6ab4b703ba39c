// Package postgres implements a Postgres repository using pgx v5. A load is a
// single transaction: overwrite truncates the target inside it and every batch
// goes through the COPY protocol, so readers see either the old table or the
// fully loaded one.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taxietl/internal/etlerr"
	"taxietl/internal/storage"
	pgddl "taxietl/internal/storage/postgres/ddl"
)

// pool is the subset of *pgxpool.Pool the repository uses.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	p, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, etlerr.Connectivity("pgxpool", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return nil, nil, etlerr.Connectivity("postgres ping", err)
	}
	return &Repository{pool: p, cfg: cfg}, func() { p.Close() }, nil
}

// Begin opens a transaction. With overwrite the table is truncated inside it;
// TRUNCATE is transactional in Postgres, so a rollback restores the rows.
func (r *Repository) Begin(ctx context.Context, mode storage.WriteMode) (storage.Load, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, etlerr.WriteFailure("postgres begin", err)
	}
	if mode == storage.WriteOverwrite {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+pgddl.QuoteFQN(r.cfg.Table)); err != nil {
			_ = tx.Rollback(ctx)
			return nil, etlerr.WriteFailure("postgres truncate", pgErr(err))
		}
		zap.S().Debugf("postgres: truncated table=%s", r.cfg.Table)
	}
	return &load{tx: tx, table: splitFQN(r.cfg.Table)}, nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return etlerr.WriteFailure("postgres exec", pgErr(err))
	}
	return nil
}

type load struct {
	tx    pgx.Tx
	table pgx.Identifier
}

// CopyFrom streams rows into the table with the COPY protocol.
func (l *load) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, etlerr.WriteFailure("postgres copy", fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns)))
		}
	}
	n, err := l.tx.CopyFrom(ctx, l.table, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, etlerr.WriteFailure("postgres copy", pgErr(err))
	}
	return n, nil
}

func (l *load) Commit(ctx context.Context) error {
	return etlerr.WriteFailure("postgres commit", pgErr(l.tx.Commit(ctx)))
}

func (l *load) Rollback(ctx context.Context) error {
	err := l.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// pgErr folds the server detail and SQLSTATE into the message.
func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Detail != "" {
		return fmt.Errorf("%s: %s (%s): %w", pe.Message, pe.Detail, pe.SQLState(), err)
	}
	return err
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			id = append(id, p)
		}
	}
	return id
}
