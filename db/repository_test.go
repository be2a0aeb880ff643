package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

type stubRepoDB struct {
	ctx     context.Context
	query   string
	execErr error
}

type stubRepoResult struct{}

func (stubRepoResult) LastInsertId() (int64, error) { return 0, nil }
func (stubRepoResult) RowsAffected() (int64, error) { return 1, nil }

func (s *stubRepoDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.ctx = ctx
	s.query = query
	return stubRepoResult{}, s.execErr
}

func (s *stubRepoDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, nil
}

func (s *stubRepoDB) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return &sql.Row{}
}

func TestRepositoryExecTimeoutAndRebind(t *testing.T) {
	stub := &stubRepoDB{}
	repo := NewRepository(stub, DialectDollar, 50*time.Millisecond)

	if _, err := repo.Exec(context.Background(), "DELETE FROM users WHERE id = ? AND version = ?", "a", 1); err != nil {
		t.Fatalf("exec error: %v", err)
	}
	if _, ok := stub.ctx.Deadline(); !ok {
		t.Fatalf("expected deadline")
	}
	if stub.query != "DELETE FROM users WHERE id = $1 AND version = $2" {
		t.Fatalf("unexpected query %q", stub.query)
	}
}

func TestRepositoryHookSeesErrors(t *testing.T) {
	stub := &stubRepoDB{execErr: errors.New("boom")}
	var calls int
	var gotErr error
	repo := NewRepository(stub, DialectQuestion, 0).WithHook(func(ctx context.Context, query string, args []any, duration time.Duration, err error) {
		calls++
		gotErr = err
	})

	_, _ = repo.Exec(context.Background(), "SELECT 1")
	if calls != 1 || gotErr == nil {
		t.Fatalf("expected hook with error, calls=%d err=%v", calls, gotErr)
	}
	if _, ok := stub.ctx.Deadline(); ok {
		t.Fatalf("expected no deadline without timeout")
	}
}

func TestInTxRequiresBeginner(t *testing.T) {
	repo := NewRepository(&stubRepoDB{}, DialectQuestion, 0)
	err := repo.InTx(context.Background(), func(Repository) error { return nil })
	if err == nil {
		t.Fatalf("expected error for non-transactional db")
	}
}

func TestDialectFor(t *testing.T) {
	if DialectFor(DriverPgx) != DialectDollar {
		t.Fatalf("expected dollar placeholders for pgx")
	}
	if DialectFor(DriverSQLite) != DialectQuestion {
		t.Fatalf("expected question placeholders for sqlite")
	}
	if got := Rebind("SELECT ?", DialectQuestion); got != "SELECT ?" {
		t.Fatalf("unexpected rebind %q", got)
	}
}
