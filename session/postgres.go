package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/devmarvs/yaade/db"
)

const DefaultPostgresTable = "yaade_sessions"

// PostgresOptions configures a Postgres store. Driver selects the
// placeholder dialect and defaults to pgx; "sqlite" runs the same store on SQLite.
type PostgresOptions struct {
	DB      *sql.DB
	Driver  string
	Table   string
	TTL     time.Duration
	Timeout time.Duration
	Now     func() time.Time
}

// PostgresStore keeps sessions in a SQL table. Timestamps are unix
// nanoseconds so expiry checks stay portable across drivers.
type PostgresStore struct {
	DB    *sql.DB
	Table string
	TTL   time.Duration

	repo db.Repository
	now  func() time.Time
}

// NewPostgresStore builds a Postgres-backed store.
func NewPostgresStore(options PostgresOptions) (*PostgresStore, error) {
	if options.DB == nil {
		return nil, errors.New("postgres db is required")
	}
	table := strings.TrimSpace(options.Table)
	if table == "" {
		table = DefaultPostgresTable
	}
	if !validPostgresTable(table) {
		return nil, fmt.Errorf("invalid postgres table name: %s", table)
	}

	driver := options.Driver
	if driver == "" {
		driver = db.DriverPgx
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}

	return &PostgresStore{
		DB:    options.DB,
		Table: table,
		TTL:   options.TTL,
		repo:  db.NewRepository(options.DB, db.DialectFor(driver), options.Timeout),
		now:   now,
	}, nil
}

// EnsureTable creates the session table if it does not exist.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		version BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		last_access BIGINT NOT NULL
	)`, s.Table)
	if _, err := s.repo.Exec(ctx, createTable); err != nil {
		return err
	}
	index := strings.ReplaceAll(s.Table, ".", "_")
	createIndex := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_access_idx ON %s (last_access)", index, s.Table)
	_, err := s.repo.Exec(ctx, createIndex)
	return err
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Cleanup removes expired sessions.
func (s *PostgresStore) Cleanup(ctx context.Context) (int64, error) {
	if s.TTL <= 0 {
		return 0, nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE last_access <= ?", s.Table)
	result, err := s.repo.Exec(ctx, query, s.cutoff(s.now()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Load fetches a live session and slides its expiry.
func (s *PostgresStore) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	now := s.now()
	var payload string
	var version, created int64
	query := fmt.Sprintf(`UPDATE %s SET last_access = ?
		WHERE id = ? AND last_access > ?
		RETURNING data, version, created_at`, s.Table)
	row, cancel := s.repo.QueryRow(ctx, query, now.UnixNano(), id, s.cutoff(now))
	err := row.Scan(&payload, &version, &created)
	cancel()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return nil, fmt.Errorf("decode session values: %w", err)
	}
	return &Session{
		ID:         id,
		CreatedAt:  time.Unix(0, created),
		LastAccess: now,
		Values:     values,
		Version:    version,
	}, nil
}

// Create stores a new empty session.
func (s *PostgresStore) Create(ctx context.Context) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	query, args, err := db.Insert(s.Table).
		Columns("id", "data", "version", "created_at", "last_access").
		Values(id, "{}", int64(0), now.UnixNano(), now.UnixNano()).
		Build()
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{ID: id, CreatedAt: now, LastAccess: now, Values: map[string]string{}}, nil
}

// Save writes sess if its version is still current.
func (s *PostgresStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrNotFound
	}
	payload, err := json.Marshal(copyValues(sess.Values))
	if err != nil {
		return err
	}
	now := s.now()
	query, args, err := db.Update(s.Table).
		Set("data", string(payload)).
		SetExpr("version = version + 1").
		Set("last_access", now.UnixNano()).
		Where("id = ?", sess.ID).
		Where("version = ?", sess.Version).
		Where("last_access > ?", s.cutoff(now)).
		Build()
	if err != nil {
		return err
	}
	result, err := s.repo.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		sess.Version++
		sess.LastAccess = now
		return nil
	}

	var exists int
	probe, args, err := db.Select("1").From(s.Table).
		Where("id = ?", sess.ID).
		Where("last_access > ?", s.cutoff(now)).
		Build()
	if err != nil {
		return err
	}
	row, cancel := s.repo.QueryRow(ctx, probe, args...)
	err = row.Scan(&exists)
	cancel()
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return ErrConflict
}

// Update runs fn inside a transaction holding the session row, so concurrent
// updates of one session are applied one after another.
func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var updated *Session
	err := s.repo.InTx(ctx, func(tx db.Repository) error {
		now := s.now()
		query, args, err := db.Select("data", "version", "created_at").From(s.Table).
			Where("id = ?", id).
			Where("last_access > ?", s.cutoff(now)).
			Build()
		if err != nil {
			return err
		}
		if tx.Dialect == db.DialectDollar {
			query += " FOR UPDATE"
		}

		var payload string
		var version, created int64
		row, cancel := tx.QueryRow(ctx, query, args...)
		err = row.Scan(&payload, &version, &created)
		cancel()
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}

		sess := &Session{ID: id, CreatedAt: time.Unix(0, created), Values: map[string]string{}, Version: version}
		if err := json.Unmarshal([]byte(payload), &sess.Values); err != nil {
			return fmt.Errorf("decode session values: %w", err)
		}
		if err := fn(sess); err != nil {
			return err
		}
		encoded, err := json.Marshal(copyValues(sess.Values))
		if err != nil {
			return err
		}

		update, args, err := db.Update(s.Table).
			Set("data", string(encoded)).
			Set("version", version+1).
			Set("last_access", now.UnixNano()).
			Where("id = ?", id).
			Build()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, update, args...); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		sess.ID = id
		sess.Version = version + 1
		sess.LastAccess = now
		updated = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Invalidate deletes a session.
func (s *PostgresStore) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	query, args, err := db.Delete(s.Table).Where("id = ?", id).Build()
	if err != nil {
		return err
	}
	if _, err := s.repo.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// cutoff is the last_access value at or below which a session is expired.
func (s *PostgresStore) cutoff(now time.Time) int64 {
	if s.TTL <= 0 {
		return 0
	}
	return now.Add(-s.TTL).UnixNano()
}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)?$`)

func validPostgresTable(name string) bool {
	return tableNamePattern.MatchString(name)
}
