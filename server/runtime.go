package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devmarvs/yaade/config"
	"github.com/devmarvs/yaade/db"
	"github.com/devmarvs/yaade/metrics"
	"github.com/devmarvs/yaade/session"
	"github.com/devmarvs/yaade/store"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// sessionCleanupInterval paces expired-row removal for SQL sessions.
const sessionCleanupInterval = 10 * time.Minute

// Runtime owns the connections opened from a Config.
type Runtime struct {
	Deps

	closers []func() error
	cleanup func(context.Context)
}

// Open connects the database, applies migrations and builds the session
// backend selected by cfg.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, version string) (*Runtime, error) {
	rt := &Runtime{Deps: Deps{Config: cfg, Logger: logger, Version: version}}

	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN, db.Options{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.closers = append(rt.closers, conn.Close)

	st, err := store.New(conn, cfg.Database.Driver, store.Options{
		Timeout: 10 * time.Second,
		Hook:    db.SlogHook(logger),
	})
	if err != nil {
		return nil, rt.fail(err)
	}
	applied, err := st.Migrate(ctx)
	if err != nil {
		return nil, rt.fail(fmt.Errorf("migrate: %w", err))
	}
	if applied > 0 {
		logger.Info("migrations applied", slog.Int("count", applied))
	}
	rt.Store = st

	sessions, err := rt.openSessions(ctx, st)
	if err != nil {
		return nil, rt.fail(err)
	}
	rt.Sessions = sessions

	if cfg.Metrics {
		rt.Metrics = metrics.New(metrics.Options{})
		if err := rt.Metrics.Register(collectors.NewDBStatsCollector(conn, "yaade")); err != nil {
			return nil, rt.fail(err)
		}
	}
	return rt, nil
}

func (rt *Runtime) openSessions(ctx context.Context, st *store.Store) (session.Store, error) {
	cfg := rt.Config
	switch cfg.Session.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return session.NewRedisStore(session.RedisOptions{
			Client: client,
			Prefix: cfg.Redis.Prefix,
			TTL:    cfg.Session.TTL,
		})
	case config.BackendPostgres:
		sessions, err := session.NewPostgresStore(session.PostgresOptions{
			DB:      st.DB(),
			Driver:  st.Driver(),
			Table:   cfg.Session.Table,
			TTL:     cfg.Session.TTL,
			Timeout: 5 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if err := sessions.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("ensure session table: %w", err)
		}
		rt.cleanup = func(ctx context.Context) {
			removed, err := sessions.Cleanup(ctx)
			if err != nil {
				rt.Logger.Warn("session cleanup failed", slog.String("error", err.Error()))
				return
			}
			if removed > 0 {
				rt.Logger.Debug("expired sessions removed", slog.Int64("count", removed))
			}
		}
		return sessions, nil
	default:
		return session.NewMemoryStore(cfg.Session.TTL), nil
	}
}

// Run builds the application, seeds the admin account and serves until ctx
// is canceled.
func (rt *Runtime) Run(ctx context.Context) error {
	app, err := New(rt.Deps)
	if err != nil {
		return err
	}
	admin := rt.Config.Admin
	if _, err := SeedAdmin(ctx, rt.Store, admin.Username, admin.Password, rt.Logger); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if rt.cleanup != nil {
		go rt.cleanupLoop(ctx)
	}
	return app.Listen(ctx)
}

func (rt *Runtime) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.cleanup(ctx)
		}
	}
}

// Close releases every connection in reverse order of opening.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func (rt *Runtime) fail(err error) error {
	return errors.Join(err, rt.Close())
}
