// Package store persists users, collections and requests in a SQL database.
//
// Queries are written once with ? placeholders and rebound per driver, so the
// same code runs on PostgreSQL (pgx) and SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devmarvs/yaade/db"
	"github.com/devmarvs/yaade/migrate"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown ids and for records owned by someone else.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned on a stale version or a duplicate username.
	ErrConflict = errors.New("store: conflict")
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() (fsys embed.FS, dir string) {
	return migrations, "migrations"
}

// Options configures a Store.
type Options struct {
	// Timeout bounds each statement; zero disables it.
	Timeout time.Duration
	// Hook observes every statement.
	Hook db.QueryHook
	Now  func() time.Time
}

// Store is the SQL-backed persistence layer.
type Store struct {
	conn   *sql.DB
	driver string
	repo   db.Repository
	now    func() time.Time
}

// New wraps an open connection for driver.
func New(conn *sql.DB, driver string, options Options) (*Store, error) {
	if conn == nil {
		return nil, errors.New("store: db is required")
	}
	switch driver {
	case db.DriverPgx, db.DriverSQLite:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	repo := db.NewRepository(conn, db.DialectFor(driver), options.Timeout)
	if options.Hook != nil {
		repo = repo.WithHook(options.Hook)
	}
	return &Store{conn: conn, driver: driver, repo: repo, now: now}, nil
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// Driver returns the driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Migrator returns a runner over the embedded migrations.
func (s *Store) Migrator() *migrate.Runner {
	fsys, dir := Migrations()
	runner := migrate.New(s.conn, s.driver, fsys, dir)
	if s.driver == db.DriverPgx {
		runner.Locker = migrate.AdvisoryLocker{ID: advisoryLockID, Timeout: time.Minute}
	}
	return runner
}

// advisoryLockID is the PostgreSQL advisory lock key for migrations.
const advisoryLockID = 0x79616164

// Migrate applies pending migrations.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	return s.Migrator().Up(ctx)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func newID() string {
	return uuid.NewString()
}

// normalizeData stores absent or null payloads as an empty object.
func normalizeData(data json.RawMessage) (string, error) {
	if len(data) == 0 || string(data) == "null" {
		return "{}", nil
	}
	if !json.Valid(data) {
		return "", errors.New("store: data is not valid JSON")
	}
	return string(data), nil
}

func exists(ctx context.Context, repo db.Repository, query string, args ...any) (bool, error) {
	var one int
	row, cancel := repo.QueryRow(ctx, query, args...)
	defer cancel()
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
