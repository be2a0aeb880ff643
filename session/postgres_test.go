package session_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/devmarvs/yaade/db"
	"github.com/devmarvs/yaade/session"
	"github.com/devmarvs/yaade/session/sessiontest"
)

func openSQLiteStore(t *testing.T, options session.PostgresOptions) *session.PostgresStore {
	t.Helper()
	conn, err := db.Open(db.DriverSQLite, ":memory:", db.Options{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	options.DB = conn
	options.Driver = db.DriverSQLite
	store, err := session.NewPostgresStore(options)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.EnsureTable(context.Background()); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	return store
}

func TestPostgresStoreConformanceOnSQLite(t *testing.T) {
	sessiontest.RunStoreTests(t, func(t *testing.T) session.Store {
		return openSQLiteStore(t, session.PostgresOptions{TTL: time.Hour})
	})
}

func TestPostgresStoreExpiryAndCleanup(t *testing.T) {
	clock := newFakeClock()
	store := openSQLiteStore(t, session.PostgresOptions{TTL: time.Minute, Now: clock.Now})
	ctx := context.Background()

	stale, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(50 * time.Second)
	live, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(20 * time.Second)

	if _, err := store.Load(ctx, stale.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if err := store.Save(ctx, stale); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected save on expired session to fail, got %v", err)
	}
	if _, err := store.Load(ctx, live.ID); err != nil {
		t.Fatalf("load live: %v", err)
	}

	removed, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired row removed, got %d", removed)
	}
}

func TestPostgresStoreRejectsBadTable(t *testing.T) {
	_, err := session.NewPostgresStore(session.PostgresOptions{DB: &sql.DB{}, Table: "sessions; DROP TABLE users"})
	if err == nil {
		t.Fatalf("expected invalid table name error")
	}
	if _, err := session.NewPostgresStore(session.PostgresOptions{}); err == nil {
		t.Fatalf("expected missing db error")
	}
}

func TestPostgresStoreConformance(t *testing.T) {
	dsn := os.Getenv("YAADE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skipping postgres session tests: YAADE_TEST_POSTGRES_DSN not set")
	}
	conn, err := db.Open(db.DriverPgx, dsn, db.Options{})
	if err != nil {
		t.Skipf("skipping postgres session tests: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	sessiontest.RunStoreTests(t, func(t *testing.T) session.Store {
		store, err := session.NewPostgresStore(session.PostgresOptions{DB: conn, TTL: time.Hour, Timeout: 5 * time.Second})
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		if err := store.EnsureTable(context.Background()); err != nil {
			t.Fatalf("ensure table: %v", err)
		}
		return store
	})
}
