// Package server assembles the yaade HTTP application: middleware, contract
// operations, logout, metrics, optional profiling and the static client.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/api"
	"github.com/devmarvs/yaade/auth"
	"github.com/devmarvs/yaade/config"
	"github.com/devmarvs/yaade/health"
	"github.com/devmarvs/yaade/logging"
	"github.com/devmarvs/yaade/metrics"
	"github.com/devmarvs/yaade/middleware"
	"github.com/devmarvs/yaade/openapi"
	"github.com/devmarvs/yaade/otel"
	"github.com/devmarvs/yaade/pprof"
	"github.com/devmarvs/yaade/session"
	"github.com/devmarvs/yaade/store"
)

// MetricsPath serves the Prometheus exposition.
const MetricsPath = "/metrics"

// ContractPath serves the loaded contract as JSON when enabled.
const ContractPath = "/api/openapi.json"

// Deps are the collaborators of the application. Store and Sessions are
// required; the rest default from Config.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Version  string
	Contract *openapi.Contract
	Store    *store.Store
	Sessions session.Store
	Provider auth.Provider
	Metrics  *metrics.Registry
	Tracer   middleware.Tracer
	Health   *health.Registry
	Static   fs.FS
}

// New builds the application. The pipeline order is fixed: request id,
// recovery, tracing, metrics, access log, security headers, body parsing,
// session attachment, then routing.
func New(deps Deps) (*yaade.App, error) {
	if deps.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("server: session store is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
		})
	}

	contract := deps.Contract
	if contract == nil {
		loaded, err := LoadContract(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		contract = loaded
	}

	provider := deps.Provider
	if provider == nil {
		provider = auth.NewLocalProvider(deps.Store.Users())
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.NewTracer("")
	}
	checks := deps.Health
	if checks == nil {
		checks = DefaultHealth(deps.Version, deps.Store, deps.Sessions)
	}
	registry := deps.Metrics
	if registry == nil && cfg.Metrics {
		registry = metrics.New(metrics.Options{})
	}

	cookie := CookieOptions(cfg)
	app := yaade.New(yaade.WithConfig(cfg), yaade.WithLogger(logger))
	app.Use(
		middleware.RequestID(),
		middleware.Recover(),
		middleware.TraceWithOptions(middleware.TraceOptions{Tracer: tracer, SkipPaths: []string{MetricsPath}}),
		middleware.MetricsWithOptions(middleware.MetricsOptions{Registry: registry, SkipPaths: []string{MetricsPath}}),
		middleware.Logger(),
		middleware.SecurityHeaders(middleware.DefaultSecurityHeaders()),
		middleware.BodyLimit(cfg.BodyLimit),
		middleware.SessionWithOptions(middleware.SessionOptions{
			Store:     deps.Sessions,
			Cookie:    cookie,
			SkipPaths: []string{MetricsPath},
		}),
	)

	h := &handlers{
		store:    deps.Store,
		sessions: deps.Sessions,
		provider: provider,
		health:   checks,
		cookie:   cookie,
	}
	if err := app.BindOperations(contract, h.operations().Table()); err != nil {
		return nil, fmt.Errorf("bind operations: %w", err)
	}

	apiGroup := app.Group("/api")
	apiGroup.GET("/logout", h.logout)
	apiGroup.POST("/logout", h.logout)

	if registry != nil {
		app.GET(MetricsPath, yaade.WrapHandler(registry.Handler()))
	}
	if cfg.ServeContract {
		app.GET(ContractPath, yaade.WrapHandler(contract.Handler()))
	}
	if cfg.Pprof {
		if err := pprof.Register(app, pprof.DefaultPrefix); err != nil {
			return nil, err
		}
	}

	spa := []yaade.StaticOption{yaade.StaticSPA(true), yaade.StaticSPAExclude("/api")}
	switch {
	case deps.Static != nil:
		app.StaticFS("/", deps.Static, spa...)
	case cfg.StaticDir != "":
		app.Static("/", cfg.StaticDir, spa...)
	}
	return app, nil
}

// LoadContract reads the contract file named by cfg, or the bundled one.
func LoadContract(ctx context.Context, cfg config.Config) (*openapi.Contract, error) {
	if cfg.ContractPath != "" {
		contract, err := openapi.Load(ctx, cfg.ContractPath)
		if err != nil {
			return nil, fmt.Errorf("load contract %s: %w", cfg.ContractPath, err)
		}
		return contract, nil
	}
	contract, err := openapi.LoadData(ctx, api.Contract)
	if err != nil {
		return nil, fmt.Errorf("load bundled contract: %w", err)
	}
	return contract, nil
}

// CookieOptions derives the session cookie from cfg.
func CookieOptions(cfg config.Config) session.CookieOptions {
	cookie := session.DefaultCookieOptions(cfg.Session.TTL)
	if cfg.Session.CookieName != "" {
		cookie.Name = cfg.Session.CookieName
	}
	cookie.Secure = cfg.Session.Secure
	return cookie
}

type pinger interface {
	Ping(context.Context) error
}

// DefaultHealth checks the database and, when it can be pinged, the session backend.
func DefaultHealth(version string, st *store.Store, sessions session.Store) *health.Registry {
	checks := health.New(health.WithVersion(version))
	checks.Add("database", st.Ping)
	if p, ok := sessions.(pinger); ok {
		checks.Add("sessions", p.Ping)
	}
	return checks
}

// SeedAdmin creates the first account when no user exists yet.
func SeedAdmin(ctx context.Context, st *store.Store, username, password string, logger *slog.Logger) (bool, error) {
	if username == "" {
		return false, nil
	}
	count, err := st.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := st.CreateUser(ctx, username, hash, nil); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	if logger != nil {
		logger.Info("admin user created", slog.String("username", username))
	}
	return true, nil
}

func slogUser(principal auth.Principal) slog.Attr {
	return slog.Group("user", slog.String("id", principal.ID), slog.String("name", principal.Username))
}
