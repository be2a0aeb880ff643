package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Execer runs exec statements with context.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer runs queries with context.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QueryRower runs row queries with context.
type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryDB groups query interfaces for repositories. Both *sql.DB and *sql.Tx satisfy it.
type QueryDB interface {
	Execer
	Queryer
	QueryRower
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Repository runs queries written with ? placeholders against any dialect,
// applying a per-call timeout and an optional hook.
type Repository struct {
	DB      QueryDB
	Dialect Dialect
	Timeout time.Duration
	Hook    QueryHook
}

// NewRepository creates a repository.
func NewRepository(db QueryDB, dialect Dialect, timeout time.Duration) Repository {
	return Repository{DB: db, Dialect: dialect, Timeout: timeout}
}

// WithHook returns a copy that reports every query to hook.
func (r Repository) WithHook(hook QueryHook) Repository {
	r.Hook = hook
	return r
}

// Exec executes a statement.
func (r Repository) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = Rebind(query, r.Dialect)
	ctx, cancel := WithTimeout(ctx, r.Timeout)
	defer cancel()

	start := time.Now()
	res, err := r.DB.ExecContext(ctx, query, args...)
	r.report(ctx, query, args, start, err)
	return res, err
}

// Query executes a query. The timeout is not applied because rows outlive the call.
func (r Repository) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = Rebind(query, r.Dialect)
	start := time.Now()
	rows, err := r.DB.QueryContext(ctx, query, args...)
	r.report(ctx, query, args, start, err)
	return rows, err
}

// QueryRow executes a row query. Call cancel after Scan.
func (r Repository) QueryRow(ctx context.Context, query string, args ...any) (*sql.Row, context.CancelFunc) {
	query = Rebind(query, r.Dialect)
	ctx, cancel := WithTimeout(ctx, r.Timeout)

	start := time.Now()
	row := r.DB.QueryRowContext(ctx, query, args...)
	r.report(ctx, query, args, start, nil)
	return row, cancel
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (r Repository) InTx(ctx context.Context, fn func(Repository) error) (err error) {
	beginner, ok := r.DB.(txBeginner)
	if !ok {
		return errors.New("db: transactions not supported")
	}
	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	scoped := r
	scoped.DB = tx
	if err = fn(scoped); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r Repository) report(ctx context.Context, query string, args []any, start time.Time, err error) {
	if r.Hook != nil {
		r.Hook(ctx, query, args, time.Since(start), err)
	}
}

// WithTimeout returns a context with timeout when provided.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
