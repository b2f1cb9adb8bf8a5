// Package config provides centralized configuration management for the
// importer. Settings come from defaults, an optional catalogimport.yaml file
// and environment variables (highest precedence), and are validated on
// startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Import     ImportConfig
	Repository RepositoryConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	CORS       CORSConfig
	Audit      AuditConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (SERVER_HOST, default 0.0.0.0)
	Host string
	// Port is the port to listen on (SERVER_PORT, default 8080)
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// ShutdownTimeout bounds graceful shutdown, including the wait for
	// running batch executions (SERVER_SHUTDOWN_TIMEOUT, default 30s)
	ShutdownTimeout time.Duration

	// RequestTimeout is the middleware timeout for requests (default 60s)
	RequestTimeout time.Duration
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (DATABASE_URL or DB_URL)
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// AutoMigrate applies pending migrations at startup (default true)
	AutoMigrate bool
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default 100MB)
	MaxFileSize int64
	// ChunkSize is the number of rows parsed per chunk when streaming.
	ChunkSize         int
	ValidationWorkers int
	LookupConcurrency int

	// MaxConcurrentExecutions limits batch executions across the process.
	MaxConcurrentExecutions int
	// MaxWaitTime is how long an execution waits for a free slot.
	MaxWaitTime time.Duration

	RetryAttempts    int
	RetryBackoff     time.Duration
	ProgressInterval int
}

// RepositoryConfig selects the element repository backend.
type RepositoryConfig struct {
	// Backend is "postgres" (elements table) or "http" (remote graph store)
	Backend string
	// URL is the base URL of the remote graph store. Required for "http".
	URL      string
	Token    string
	Timeout  time.Duration
	RetryMax int
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the default limit per IP (default 100)
	RequestsPerMinute int
	// ExecuteLimit is the per-minute limit for parse and execute endpoints
	// (default 10)
	ExecuteLimit int
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs.
	TrustedProxies []string

	EnableCSP bool

	// RequireAPIKey protects /api with an X-API-Key header.
	RequireAPIKey bool
	APIKeys       []string
}

// CORSConfig controls cross-origin access for a separately hosted UI.
type CORSConfig struct {
	AllowedOrigins []string
}

// AuditConfig controls audit log retention.
type AuditConfig struct {
	RetentionDays int
	CheckInterval time.Duration
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default info)
	Level string
	// Format is text or json (default text)
	Format string
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
