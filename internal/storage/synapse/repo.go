// Package synapse implements storage.Repository for Azure Synapse dedicated
// SQL pools. Batches are staged as gzip CSV files in Blob Storage and loaded
// at commit with one COPY INTO; the delete of existing rows and the COPY run
// in a single transaction. Staged files are removed after commit or rollback
// unless staging.keep is set.
package synapse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxietl/internal/blobstore"
	"taxietl/internal/etlerr"
	"taxietl/internal/storage"
	"taxietl/internal/storage/mssql"
	msddl "taxietl/internal/storage/mssql/ddl"
)

// Config holds Synapse repository configuration.
type Config struct {
	DSN     string
	Table   string
	Columns []string
	Staging storage.StagingConfig
}

// Repository is a Synapse-backed implementation of storage.Repository.
type Repository struct {
	db    *sql.DB
	blobs blobAPI
	root  blobstore.Location
	cred  Credential
	cfg   Config
}

// hooks replaced in tests
var (
	openDB     = mssql.Open
	newBlobAPI = func(loc blobstore.Location, key string) (blobAPI, error) {
		return blobstore.NewClient(loc, key)
	}
)

// NewRepository connects to the pool and the staging account.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	root, err := blobstore.ParseURL(cfg.Staging.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("synapse staging: %w", err)
	}
	cred := Credential{Identity: cfg.Staging.Identity, Secret: cfg.Staging.AccountKey}
	if _, err := cred.clause(); err != nil {
		return nil, nil, err
	}
	blobs, err := newBlobAPI(root, cfg.Staging.AccountKey)
	if err != nil {
		return nil, nil, etlerr.Connectivity("synapse staging client", err)
	}
	db, err := openDB(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	r := &Repository{db: db, blobs: blobs, root: root, cred: cred, cfg: cfg}
	return r, func() { _ = db.Close() }, nil
}

// Begin starts a load in a fresh run folder. Nothing touches the table
// until Commit.
func (r *Repository) Begin(ctx context.Context, mode storage.WriteMode) (storage.Load, error) {
	dir := r.root.Join(tablePath(r.cfg.Table), uuid.NewString())
	zap.S().Debugf("synapse: staging run dir=%s", dir.Wasbs())
	return &load{
		repo:  r,
		mode:  mode,
		stage: &stage{blobs: r.blobs, dir: dir},
	}, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return etlerr.WriteFailure("synapse exec", err)
	}
	return nil
}

type load struct {
	repo    *Repository
	mode    storage.WriteMode
	stage   *stage
	columns []string
	staged  int64
	done    bool
}

// CopyFrom stages rows as the next CSV part. Every batch of a load must use
// the same columns, since one COPY INTO reads all parts.
func (l *load) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if l.done {
		return 0, fmt.Errorf("synapse: load already finished")
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("synapse: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if l.columns == nil {
		l.columns = append([]string(nil), columns...)
	} else if strings.Join(l.columns, "\x00") != strings.Join(columns, "\x00") {
		return 0, etlerr.WriteFailure("synapse stage", fmt.Errorf("columns changed within a load: %v then %v", l.columns, columns))
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, etlerr.WriteFailure("synapse stage", fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns)))
		}
	}
	name, err := l.stage.put(ctx, rows)
	if err != nil {
		return 0, etlerr.WriteFailure("synapse stage", err)
	}
	l.staged += int64(len(rows))
	zap.S().Debugf("synapse: staged blob=%s rows=%d", name, len(rows))
	return int64(len(rows)), nil
}

// Commit replaces (or appends to) the table from the staged files in one
// transaction, then removes the staging folder.
func (l *load) Commit(ctx context.Context) error {
	if l.done {
		return fmt.Errorf("synapse: load already finished")
	}
	l.done = true
	defer l.cleanup()

	r := l.repo
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return etlerr.WriteFailure("synapse begin tx", err)
	}
	if l.mode == storage.WriteOverwrite {
		// TRUNCATE is not allowed inside a user transaction on dedicated pools
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+msddl.QuoteFQN(r.cfg.Table)); err != nil {
			_ = tx.Rollback()
			return etlerr.WriteFailure("synapse delete", err)
		}
	}
	if l.stage.len() > 0 {
		src := l.stage.dir.URL() + "/"
		stmt, err := CopyIntoSQL(r.cfg.Table, l.columns, src, r.cred)
		if err != nil {
			_ = tx.Rollback()
			return etlerr.WriteFailure("synapse copy into", err)
		}
		start := time.Now()
		res, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			_ = tx.Rollback()
			return etlerr.WriteFailure("synapse copy into", err)
		}
		if n, err := res.RowsAffected(); err == nil && n >= 0 && n != l.staged {
			zap.S().Warnf("synapse: copy into loaded=%d staged=%d", n, l.staged)
		}
		zap.S().Infof("synapse: copy into table=%s files=%d rows=%d elapsed=%s",
			r.cfg.Table, l.stage.len(), l.staged, time.Since(start).Truncate(time.Millisecond))
	}
	return etlerr.WriteFailure("synapse commit", tx.Commit())
}

// Rollback discards the staged files. The table was never touched.
func (l *load) Rollback(context.Context) error {
	if l.done {
		return nil
	}
	l.done = true
	l.cleanup()
	return nil
}

func (l *load) cleanup() {
	if l.repo.cfg.Staging.Keep {
		zap.S().Infof("synapse: keeping staged files dir=%s", l.stage.dir.Wasbs())
		return
	}
	// the caller's context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if n := l.stage.cleanup(ctx); n > 0 {
		zap.S().Debugf("synapse: deleted staged files=%d", n)
	}
}

// tablePath turns "dbo.yellow_tripdata" into a blob-safe folder name.
func tablePath(table string) string {
	return strings.NewReplacer("[", "", "]", "", "/", "_", " ", "_").Replace(strings.TrimSpace(table))
}
