package config

import (
	"strconv"
	"time"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds server configuration.
type Config struct {
	Port              int           `json:"port" env:"YAADE_PORT"`
	ContractPath      string        `json:"contract_path" env:"YAADE_CONTRACT_PATH"`
	ServeContract     bool          `json:"serve_contract" env:"YAADE_SERVE_CONTRACT"`
	StaticDir         string        `json:"static_dir" env:"YAADE_STATIC_DIR"`
	BodyLimit         int64         `json:"body_limit" env:"YAADE_BODY_LIMIT"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"YAADE_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"YAADE_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"YAADE_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"YAADE_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"YAADE_SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes    int           `json:"max_header_bytes" env:"YAADE_MAX_HEADER_BYTES"`
	Metrics           bool          `json:"metrics" env:"YAADE_METRICS"`
	Pprof             bool          `json:"pprof" env:"YAADE_PPROF"`

	LogLevel  string `json:"log_level" env:"YAADE_LOG_LEVEL"`
	LogFormat string `json:"log_format" env:"YAADE_LOG_FORMAT"`

	Session  SessionConfig  `json:"session"`
	Redis    RedisConfig    `json:"redis"`
	Database DatabaseConfig `json:"database"`
	Admin    AdminConfig    `json:"admin"`
}

// SessionConfig selects and tunes the session store.
type SessionConfig struct {
	Backend    string        `json:"backend" env:"YAADE_SESSION_BACKEND"`
	TTL        time.Duration `json:"ttl" env:"YAADE_SESSION_TTL"`
	CookieName string        `json:"cookie_name" env:"YAADE_SESSION_COOKIE"`
	Secure     bool          `json:"secure" env:"YAADE_SESSION_SECURE"`
	Table      string        `json:"table" env:"YAADE_SESSION_TABLE"`
}

// RedisConfig points at the Redis session backend.
type RedisConfig struct {
	Addr     string `json:"addr" env:"YAADE_REDIS_ADDR"`
	Password string `json:"password" env:"YAADE_REDIS_PASSWORD"`
	DB       int    `json:"db" env:"YAADE_REDIS_DB"`
	Prefix   string `json:"prefix" env:"YAADE_REDIS_PREFIX"`
}

// DatabaseConfig points at the application database.
type DatabaseConfig struct {
	Driver string `json:"driver" env:"YAADE_DB_DRIVER"`
	DSN    string `json:"dsn" env:"YAADE_DB_DSN"`
}

// AdminConfig seeds the first user on an empty database.
type AdminConfig struct {
	Username string `json:"username" env:"YAADE_ADMIN_USERNAME"`
	Password string `json:"password" env:"YAADE_ADMIN_PASSWORD"`
}

// Default returns safe defaults.
func Default() Config {
	return Config{
		Port:              9339,
		BodyLimit:         10 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Metrics:           true,
		LogLevel:          "info",
		LogFormat:         "text",
		Session: SessionConfig{
			Backend:    BackendMemory,
			TTL:        24 * time.Hour,
			CookieName: "yaade_session",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:yaade.db",
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "password",
		},
	}
}

// Address returns the listen address for Port.
func (c Config) Address() string {
	return ":" + strconv.Itoa(c.Port)
}
