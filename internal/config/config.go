// Package config provides centralized configuration management for the application.
// Settings come from struct-tag defaults, an optional TOML file named by
// CONFIG_FILE, and environment variables, in increasing order of precedence.
// Everything is validated on startup to fail fast on misconfiguration.
package config

import (
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Session  SessionConfig   `toml:"session"`
	Import   ImportConfig    `toml:"import"`
	Export   ExportConfig    `toml:"export"`
	Rate     RateLimitConfig `toml:"rate"`
	Security SecurityConfig  `toml:"security"`
	Logging  LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" toml:"host" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" toml:"port" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" toml:"read_timeout" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" toml:"write_timeout" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" toml:"idle_timeout" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" toml:"shutdown_timeout" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" toml:"request_timeout" default:"60s"`
}

// Session store backends.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// SessionConfig holds settings for the audit session and its durable slot.
type SessionConfig struct {
	// Store selects the snapshot backend: file, sqlite, postgres or memory (default: file)
	Store string `env:"SESSION_STORE" toml:"store" default:"file"`

	// Path is the snapshot file or SQLite database (default depends on Store)
	Path string `env:"SESSION_PATH" toml:"path"`

	// DatabaseURL is the PostgreSQL connection string for the postgres store.
	// Supports both DATABASE_URL and DB_URL env vars.
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL" toml:"database_url"`

	// MaxConns caps the postgres pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" toml:"max_conns" default:"4"`

	// SnapshotDebounce delays snapshots until edits go quiet; 0 saves after
	// every change (default: 0s)
	SnapshotDebounce time.Duration `env:"SESSION_SNAPSHOT_DEBOUNCE" toml:"snapshot_debounce" default:"0s"`

	// AllowReprocessing lets an action overwrite an item that is no longer
	// pending (default: true)
	AllowReprocessing bool `env:"SESSION_ALLOW_REPROCESSING" toml:"allow_reprocessing" default:"true"`

	// PageSize is the main table page size (default: 50)
	PageSize int `env:"SESSION_PAGE_SIZE" toml:"page_size" default:"50"`

	// SearchThreshold bounds fuzzy search: skipped characters per query
	// character allowed in a match, up to 1 for any subsequence (default: 0.3)
	SearchThreshold float64 `env:"SESSION_SEARCH_THRESHOLD" toml:"search_threshold" default:"0.3"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" toml:"max_file_size" default:"104857600"`

	// Encoding is the default text encoding of imported files (default: utf-8)
	Encoding string `env:"IMPORT_ENCODING" toml:"encoding" default:"utf-8"`

	// RequireDescription rejects files without a Descrica07 column (default: false)
	RequireDescription bool `env:"IMPORT_REQUIRE_DESCRIPTION" toml:"require_description" default:"false"`

	// WatchDir enables the inbox: CSV files dropped here are imported
	WatchDir string `env:"IMPORT_WATCH_DIR" toml:"watch_dir"`

	// MaxWaitTime is how long a queued import waits for the parser (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" toml:"max_wait_time" default:"30s"`

	// Timeout is the maximum duration of a single import (default: 2m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" toml:"timeout" default:"2m"`
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	// FilePrefix names exported reports <prefix>_<date>.csv (default: report)
	FilePrefix string `env:"EXPORT_FILE_PREFIX" toml:"file_prefix" default:"report"`

	// BOM prefixes reports with a UTF-8 byte-order mark (default: true)
	BOM bool `env:"EXPORT_BOM" toml:"bom" default:"true"`

	// IncludeCheckedAt adds a data_conferencia column (default: false)
	IncludeCheckedAt bool `env:"EXPORT_INCLUDE_CHECKED_AT" toml:"include_checked_at" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" toml:"enabled" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" toml:"requests_per_minute" default:"300"`

	// ImportLimit is requests per minute for the import endpoint (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" toml:"import_limit" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" toml:"trusted_proxies"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" toml:"enable_csp" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" toml:"level" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" toml:"format" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// SnapshotPath returns Path, or the default location for the file and
// sqlite stores.
func (c *SessionConfig) SnapshotPath() string {
	if c.Path != "" {
		return c.Path
	}
	switch c.Store {
	case StoreSQLite:
		return filepath.Join("data", "patrimonio.db")
	case StoreFile:
		return filepath.Join("data", "session.json")
	}
	return ""
}
