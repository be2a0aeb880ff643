package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Supported database/sql driver names.
const (
	DriverPgx    = "pgx"
	DriverSQLite = "sqlite"
)

// Dialect configures SQL placeholder style.
type Dialect int

const (
	// DialectQuestion uses ? placeholders.
	DialectQuestion Dialect = iota
	// DialectDollar uses $1 style placeholders.
	DialectDollar
)

// DialectFor returns the placeholder dialect of a driver.
func DialectFor(driver string) Dialect {
	switch driver {
	case DriverPgx, "postgres":
		return DialectDollar
	default:
		return DialectQuestion
	}
}

// Options configures database connection pooling.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// Open opens a database and applies options.
func Open(driver, dsn string, options Options) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite && options.MaxOpenConns == 0 {
		// SQLite allows a single writer.
		options.MaxOpenConns = 1
	}
	if options.MaxOpenConns > 0 {
		db.SetMaxOpenConns(options.MaxOpenConns)
	}
	if options.MaxIdleConns > 0 {
		db.SetMaxIdleConns(options.MaxIdleConns)
	}
	if options.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(options.ConnMaxLifetime)
	}
	if options.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(options.ConnMaxIdleTime)
	}

	pingTimeout := options.PingTimeout
	if pingTimeout == 0 {
		pingTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Rebind rewrites ? placeholders for the dialect.
func Rebind(query string, dialect Dialect) string {
	if dialect != DialectDollar || !strings.Contains(query, "?") {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	idx := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(idx))
			idx++
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}
