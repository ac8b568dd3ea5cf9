// Package config provides centralized configuration management for the
// provisioning tool. It loads settings from environment variables with
// sensible defaults and validates everything on startup to fail fast on
// misconfiguration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database  DatabaseConfig
	Identity  IdentityConfig
	Server    ServerConfig
	Upload    UploadConfig
	Provision ProvisionConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// DatabaseConfig holds the profile/contractor store connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// IdentityConfig holds identity-store admin API settings.
type IdentityConfig struct {
	// URL is the base URL of the identity store (required)
	URL string `env:"IDENTITY_URL" envAlt:"SUPABASE_URL" required:"true"`

	// ServiceRoleKey authenticates admin API calls (required)
	ServiceRoleKey string `env:"IDENTITY_SERVICE_ROLE_KEY" envAlt:"SUPABASE_SERVICE_ROLE_KEY" required:"true"`

	// Timeout is the per-request HTTP timeout (default: 30s)
	Timeout time.Duration `env:"IDENTITY_TIMEOUT" default:"30s"`

	// PageSize is how many users to fetch per admin list page (default: 200)
	PageSize int `env:"IDENTITY_PAGE_SIZE" default:"200"`
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m,
	// an apply run makes several store calls per row)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// UploadConfig holds CSV upload settings for serve mode.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed CSV size in bytes (default: 5MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"5242880"`
}

// ProvisionConfig holds reconciler behavior settings.
type ProvisionConfig struct {
	// AllowHTTPApply permits apply mode through the HTTP endpoint.
	// When false (the default) the endpoint only ever dry-runs.
	AllowHTTPApply bool `env:"PROVISION_ALLOW_HTTP_APPLY" default:"false"`

	// MaxConcurrentRuns caps simultaneous provisioning runs in serve mode.
	// The super-admin policy is seeded once per run, so overlapping runs
	// against the same stores can race it; leave this at 1 unless runs
	// target disjoint stores.
	MaxConcurrentRuns int `env:"PROVISION_MAX_CONCURRENT_RUNS" default:"1"`

	// RunWaitTimeout is how long an HTTP request waits for a run slot
	// before being rejected (default: 10s)
	RunWaitTimeout time.Duration `env:"PROVISION_RUN_WAIT_TIMEOUT" default:"10s"`
}

// SecurityConfig holds serve-mode security settings.
type SecurityConfig struct {
	// RequireAPIKey gates the HTTP endpoints behind X-API-Key (default: false;
	// the CLI paths never serve HTTP, so auth is opt-in for serve mode)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	if c.Identity.URL == "" {
		errs = append(errs, "IDENTITY_URL is required")
	} else if !strings.HasPrefix(c.Identity.URL, "http://") && !strings.HasPrefix(c.Identity.URL, "https://") {
		errs = append(errs, fmt.Sprintf("IDENTITY_URL (%q) must be an http(s) URL", c.Identity.URL))
	}
	if c.Identity.ServiceRoleKey == "" {
		errs = append(errs, "IDENTITY_SERVICE_ROLE_KEY is required")
	}
	if c.Identity.Timeout <= 0 {
		errs = append(errs, "IDENTITY_TIMEOUT must be positive")
	}
	if c.Identity.PageSize <= 0 {
		errs = append(errs, "IDENTITY_PAGE_SIZE must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}

	if c.Provision.MaxConcurrentRuns <= 0 {
		errs = append(errs, "PROVISION_MAX_CONCURRENT_RUNS must be positive")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Secrets (database URL, service key) are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Identity: {URL: %q, ServiceRoleKey: [MASKED], PageSize: %d}, ",
		c.Identity.URL, c.Identity.PageSize))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Provision: {AllowHTTPApply: %v}, ", c.Provision.AllowHTTPApply))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
