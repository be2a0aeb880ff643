package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
	backends   = []string{BackendMemory, BackendRedis, BackendPostgres}
	drivers    = []string{"sqlite", "pgx"}
)

// Validate reports every invalid setting of cfg at once.
func Validate(cfg Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		fail("port %d out of range 0-65535", cfg.Port)
	}
	if cfg.BodyLimit < 0 {
		fail("body_limit must not be negative")
	}
	if cfg.MaxHeaderBytes < 0 {
		fail("max_header_bytes must not be negative")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"read_timeout", cfg.ReadTimeout},
		{"write_timeout", cfg.WriteTimeout},
		{"idle_timeout", cfg.IdleTimeout},
		{"read_header_timeout", cfg.ReadHeaderTimeout},
		{"shutdown_timeout", cfg.ShutdownTimeout},
		{"session.ttl", cfg.Session.TTL},
	} {
		if d.value < 0 {
			fail("%s must not be negative", d.name)
		}
	}

	if !oneOf(cfg.LogLevel, logLevels) {
		fail("log_level %q is not one of %s", cfg.LogLevel, strings.Join(logLevels, "|"))
	}
	if !oneOf(cfg.LogFormat, logFormats) {
		fail("log_format %q is not one of %s", cfg.LogFormat, strings.Join(logFormats, "|"))
	}

	if !slices.Contains(backends, cfg.Session.Backend) {
		fail("session.backend %q is not one of %s", cfg.Session.Backend, strings.Join(backends, "|"))
	}
	if cfg.Session.Backend == BackendRedis && cfg.Redis.Addr == "" {
		fail("redis.addr is required for the redis session backend")
	}
	if cfg.Session.Backend == BackendPostgres && cfg.Database.Driver != "pgx" {
		fail("session.backend postgres requires database.driver pgx")
	}
	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		fail("session.cookie_name is required")
	}

	if !slices.Contains(drivers, cfg.Database.Driver) {
		fail("database.driver %q is not one of %s", cfg.Database.Driver, strings.Join(drivers, "|"))
	}
	if cfg.Database.DSN == "" {
		fail("database.dsn is required")
	}

	if cfg.Admin.Username != "" && cfg.Admin.Password == "" {
		fail("admin.password is required when admin.username is set")
	}
	return errors.Join(errs...)
}

// oneOf accepts an empty value or a case-insensitive member of allowed.
func oneOf(value string, allowed []string) bool {
	return value == "" || slices.Contains(allowed, strings.ToLower(value))
}
