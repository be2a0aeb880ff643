// Package migrate applies versioned SQL migrations read from an fs.FS.
//
// Files are named NNNN_name.up.sql and NNNN_name.down.sql. Applied versions
// are recorded in a bookkeeping table; each migration runs in its own
// transaction together with its bookkeeping row.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/devmarvs/yaade/db"
)

// DefaultTable records applied versions.
const DefaultTable = "schema_migrations"

// Migration describes a migration pair.
type Migration struct {
	Version  int
	Name     string
	UpPath   string
	DownPath string
}

// PlanEntry describes a migration and whether it has been applied.
type PlanEntry struct {
	Migration
	Applied bool
}

// Locker serializes concurrent runners.
type Locker interface {
	Lock(context.Context, *sql.DB) error
	Unlock(context.Context, *sql.DB) error
}

var (
	// ErrLockTimeout indicates a lock timeout.
	ErrLockTimeout = errors.New("migration lock timeout")
	// ErrNoDatabase is returned by operations that need a connection.
	ErrNoDatabase = errors.New("migrate: db is required")
)

// AdvisoryLocker uses PostgreSQL advisory locks.
type AdvisoryLocker struct {
	ID           int64
	Timeout      time.Duration
	PollInterval time.Duration
}

// Lock acquires the advisory lock, polling until Timeout when one is set.
func (a AdvisoryLocker) Lock(ctx context.Context, conn *sql.DB) error {
	if a.Timeout <= 0 {
		_, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", a.ID)
		return err
	}

	poll := a.PollInterval
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		var locked bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", a.ID).Scan(&locked); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrLockTimeout
			}
			return err
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrLockTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Unlock releases the advisory lock.
func (a AdvisoryLocker) Unlock(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", a.ID)
	return err
}

// Runner executes migrations from a file system.
type Runner struct {
	DB     *sql.DB
	FS     fs.FS
	Dir    string
	Table  string
	Locker Locker

	repo db.Repository
}

// New creates a Runner for driver over the migrations in dir of fsys.
func New(conn *sql.DB, driver string, fsys fs.FS, dir string) *Runner {
	if dir == "" {
		dir = "."
	}
	r := &Runner{DB: conn, FS: fsys, Dir: dir, Table: DefaultTable}
	if conn != nil {
		r.repo = db.NewRepository(conn, db.DialectFor(driver), 0)
	}
	return r
}

// Plan lists migrations, marking the applied ones when a database is set.
func (r *Runner) Plan(ctx context.Context) ([]PlanEntry, error) {
	migrations, err := r.List()
	if err != nil {
		return nil, err
	}

	applied := map[int]struct{}{}
	if r.DB != nil {
		if err := r.ensureTable(ctx); err != nil {
			return nil, err
		}
		versions, err := r.appliedVersions(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			applied[v] = struct{}{}
		}
	}

	plan := make([]PlanEntry, 0, len(migrations))
	for _, m := range migrations {
		_, ok := applied[m.Version]
		plan = append(plan, PlanEntry{Migration: m, Applied: ok})
	}
	return plan, nil
}

// Up applies all pending migrations in version order.
func (r *Runner) Up(ctx context.Context) (int, error) {
	count := 0
	err := r.locked(ctx, func(migrations []Migration, applied []int) error {
		done := make(map[int]struct{}, len(applied))
		for _, v := range applied {
			done[v] = struct{}{}
		}
		for _, m := range migrations {
			if _, ok := done[m.Version]; ok {
				continue
			}
			if m.UpPath == "" {
				return fmt.Errorf("missing up migration for version %d", m.Version)
			}
			if err := r.apply(ctx, m, true); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// Down rolls back the latest steps applied migrations.
func (r *Runner) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		return 0, nil
	}
	count := 0
	err := r.locked(ctx, func(migrations []Migration, applied []int) error {
		byVersion := make(map[int]Migration, len(migrations))
		for _, m := range migrations {
			byVersion[m.Version] = m
		}
		for i := 0; i < steps && i < len(applied); i++ {
			m, ok := byVersion[applied[i]]
			if !ok {
				return fmt.Errorf("missing migration for version %d", applied[i])
			}
			if m.DownPath == "" {
				return fmt.Errorf("missing down migration for version %d", m.Version)
			}
			if err := r.apply(ctx, m, false); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// locked runs fn with the lock held. applied is newest first.
func (r *Runner) locked(ctx context.Context, fn func(migrations []Migration, applied []int) error) error {
	if r.DB == nil {
		return ErrNoDatabase
	}
	if err := r.ensureTable(ctx); err != nil {
		return err
	}
	if r.Locker != nil {
		if err := r.Locker.Lock(ctx, r.DB); err != nil {
			return err
		}
		defer func() {
			_ = r.Locker.Unlock(context.WithoutCancel(ctx), r.DB)
		}()
	}

	migrations, err := r.List()
	if err != nil {
		return err
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}
	return fn(migrations, applied)
}

var fileName = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_\-]+)\.(up|down)\.sql$`)

// List returns the migrations found in the runner's directory.
func (r *Runner) List() ([]Migration, error) {
	if r.FS == nil {
		return nil, errors.New("migrate: file system is required")
	}
	entries, err := fs.ReadDir(r.FS, r.Dir)
	if err != nil {
		return nil, err
	}

	byVersion := map[int]Migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := fileName.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		m := byVersion[version]
		if m.Name != "" && m.Name != match[2] {
			return nil, fmt.Errorf("version %d has conflicting names %q and %q", version, m.Name, match[2])
		}
		m.Version = version
		m.Name = match[2]
		full := path.Join(r.Dir, entry.Name())
		if match[3] == "up" {
			m.UpPath = full
		} else {
			m.DownPath = full
		}
		byVersion[version] = m
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (r *Runner) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at BIGINT NOT NULL
	)`, r.Table)
	_, err := r.repo.Exec(ctx, query)
	return err
}

func (r *Runner) appliedVersions(ctx context.Context) ([]int, error) {
	query, args, err := db.Select("version").From(r.Table).OrderBy("version DESC").Build()
	if err != nil {
		return nil, err
	}
	rows, err := r.repo.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *Runner) apply(ctx context.Context, m Migration, up bool) error {
	file := m.UpPath
	if !up {
		file = m.DownPath
	}
	contents, err := fs.ReadFile(r.FS, file)
	if err != nil {
		return err
	}

	err = r.repo.InTx(ctx, func(tx db.Repository) error {
		if strings.TrimSpace(string(contents)) != "" {
			// Migration files are written for their driver and are not rebound.
			if _, err := tx.DB.ExecContext(ctx, string(contents)); err != nil {
				return err
			}
		}
		var query string
		var args []any
		var err error
		if up {
			query, args, err = db.Insert(r.Table).
				Columns("version", "name", "applied_at").
				Values(m.Version, m.Name, time.Now().Unix()).
				Build()
		} else {
			query, args, err = db.Delete(r.Table).Where("version = ?", m.Version).Build()
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		direction := "up"
		if !up {
			direction = "down"
		}
		return fmt.Errorf("migration %04d_%s %s: %w", m.Version, m.Name, direction, err)
	}
	return nil
}
