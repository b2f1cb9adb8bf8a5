package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// envBindings maps config keys to environment variables. The first variable
// that is set wins.
var envBindings = map[string][]string{
	"server.host":             {"SERVER_HOST"},
	"server.port":             {"SERVER_PORT"},
	"server.read_timeout":     {"SERVER_READ_TIMEOUT"},
	"server.write_timeout":    {"SERVER_WRITE_TIMEOUT"},
	"server.idle_timeout":     {"SERVER_IDLE_TIMEOUT"},
	"server.shutdown_timeout": {"SERVER_SHUTDOWN_TIMEOUT"},
	"server.request_timeout":  {"SERVER_REQUEST_TIMEOUT"},

	"database.url":                {"DATABASE_URL", "DB_URL"},
	"database.max_conns":          {"DB_MAX_CONNS"},
	"database.min_conns":          {"DB_MIN_CONNS"},
	"database.max_conn_lifetime":  {"DB_MAX_CONN_LIFETIME"},
	"database.max_conn_idle_time": {"DB_MAX_CONN_IDLE_TIME"},
	"database.auto_migrate":       {"DB_AUTO_MIGRATE"},

	"import.max_file_size":             {"IMPORT_MAX_FILE_SIZE"},
	"import.chunk_size":                {"IMPORT_CHUNK_SIZE"},
	"import.validation_workers":        {"IMPORT_VALIDATION_WORKERS"},
	"import.lookup_concurrency":        {"IMPORT_LOOKUP_CONCURRENCY"},
	"import.max_concurrent_executions": {"IMPORT_MAX_CONCURRENT_EXECUTIONS"},
	"import.max_wait_time":             {"IMPORT_MAX_WAIT_TIME"},
	"import.retry_attempts":            {"IMPORT_RETRY_ATTEMPTS"},
	"import.retry_backoff":             {"IMPORT_RETRY_BACKOFF"},
	"import.progress_interval":         {"IMPORT_PROGRESS_INTERVAL"},

	"repository.backend":   {"REPOSITORY_BACKEND"},
	"repository.url":       {"REPOSITORY_URL"},
	"repository.token":     {"REPOSITORY_TOKEN"},
	"repository.timeout":   {"REPOSITORY_TIMEOUT"},
	"repository.retry_max": {"REPOSITORY_RETRY_MAX"},

	"rate.enabled":             {"RATE_LIMIT_ENABLED"},
	"rate.requests_per_minute": {"RATE_LIMIT_REQUESTS_PER_MINUTE"},
	"rate.execute_limit":       {"RATE_LIMIT_EXECUTE"},

	"security.trusted_proxies": {"TRUSTED_PROXIES"},
	"security.enable_csp":      {"SECURITY_ENABLE_CSP"},
	"security.require_api_key": {"REQUIRE_API_KEY"},
	"security.api_keys":        {"API_KEYS"},

	"cors.allowed_origins": {"CORS_ALLOWED_ORIGINS"},

	"audit.retention_days": {"AUDIT_RETENTION_DAYS"},
	"audit.check_interval": {"AUDIT_CHECK_INTERVAL"},

	"logging.level":  {"LOG_LEVEL"},
	"logging.format": {"LOG_FORMAT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "60s")

	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 4)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("import.max_file_size", 104857600)
	v.SetDefault("import.chunk_size", 500)
	v.SetDefault("import.validation_workers", 0)
	v.SetDefault("import.lookup_concurrency", 8)
	v.SetDefault("import.max_concurrent_executions", 4)
	v.SetDefault("import.max_wait_time", "30s")
	v.SetDefault("import.retry_attempts", 2)
	v.SetDefault("import.retry_backoff", "200ms")
	v.SetDefault("import.progress_interval", 100)

	v.SetDefault("repository.backend", "postgres")
	v.SetDefault("repository.timeout", "10s")
	v.SetDefault("repository.retry_max", 3)

	v.SetDefault("rate.enabled", true)
	v.SetDefault("rate.requests_per_minute", 100)
	v.SetDefault("rate.execute_limit", 10)

	v.SetDefault("security.enable_csp", true)
	v.SetDefault("security.require_api_key", false)

	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.check_interval", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration from defaults, an optional catalogimport.yaml in
// the working directory and environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory and /etc/catalog-import; a missing file is not an error
// unless path was given.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config load: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalogimport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/catalog-import")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config load: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxConns:        v.GetInt("database.max_conns"),
			MinConns:        v.GetInt("database.min_conns"),
			MaxConnLifetime: v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime: v.GetDuration("database.max_conn_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Import: ImportConfig{
			MaxFileSize:             v.GetInt64("import.max_file_size"),
			ChunkSize:               v.GetInt("import.chunk_size"),
			ValidationWorkers:       v.GetInt("import.validation_workers"),
			LookupConcurrency:       v.GetInt("import.lookup_concurrency"),
			MaxConcurrentExecutions: v.GetInt("import.max_concurrent_executions"),
			MaxWaitTime:             v.GetDuration("import.max_wait_time"),
			RetryAttempts:           v.GetInt("import.retry_attempts"),
			RetryBackoff:            v.GetDuration("import.retry_backoff"),
			ProgressInterval:        v.GetInt("import.progress_interval"),
		},
		Repository: RepositoryConfig{
			Backend:  strings.ToLower(v.GetString("repository.backend")),
			URL:      v.GetString("repository.url"),
			Token:    v.GetString("repository.token"),
			Timeout:  v.GetDuration("repository.timeout"),
			RetryMax: v.GetInt("repository.retry_max"),
		},
		Rate: RateLimitConfig{
			Enabled:           v.GetBool("rate.enabled"),
			RequestsPerMinute: v.GetInt("rate.requests_per_minute"),
			ExecuteLimit:      v.GetInt("rate.execute_limit"),
		},
		Security: SecurityConfig{
			TrustedProxies: stringList(v, "security.trusted_proxies"),
			EnableCSP:      v.GetBool("security.enable_csp"),
			RequireAPIKey:  v.GetBool("security.require_api_key"),
			APIKeys:        stringList(v, "security.api_keys"),
		},
		CORS: CORSConfig{
			AllowedOrigins: stringList(v, "cors.allowed_origins"),
		},
		Audit: AuditConfig{
			RetentionDays: v.GetInt("audit.retention_days"),
			CheckInterval: v.GetDuration("audit.check_interval"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}
}

// stringList reads a list that is either a YAML sequence or a
// comma-separated string (the environment form).
func stringList(v *viper.Viper, key string) []string {
	var parts []string
	if s, ok := v.Get(key).(string); ok {
		parts = strings.Split(s, ",")
	} else {
		parts = v.GetStringSlice(key)
	}

	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database
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

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Import
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.ChunkSize <= 0 {
		errs = append(errs, "IMPORT_CHUNK_SIZE must be positive")
	}
	if c.Import.ValidationWorkers < 0 {
		errs = append(errs, "IMPORT_VALIDATION_WORKERS must be non-negative")
	}
	if c.Import.MaxConcurrentExecutions <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT_EXECUTIONS must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Import.RetryAttempts < 0 {
		errs = append(errs, "IMPORT_RETRY_ATTEMPTS must be non-negative")
	}

	// Repository
	switch c.Repository.Backend {
	case "postgres":
	case "http":
		if c.Repository.URL == "" {
			errs = append(errs, "REPOSITORY_URL is required when REPOSITORY_BACKEND is http")
		}
	default:
		errs = append(errs, fmt.Sprintf("REPOSITORY_BACKEND (%q) must be one of: postgres, http", c.Repository.Backend))
	}

	// Rate limiting
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ExecuteLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_EXECUTE must be positive when rate limiting is enabled")
	}

	// Security
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Audit
	if c.Audit.RetentionDays < 0 {
		errs = append(errs, "AUDIT_RETENTION_DAYS must be non-negative")
	}
	if c.Audit.CheckInterval < 0 {
		errs = append(errs, "AUDIT_CHECK_INTERVAL must be non-negative")
	}

	// Logging
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Logging.Format)) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// Database URLs, tokens and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {ChunkSize: %d, MaxConcurrentExecutions: %d, RetryAttempts: %d}, ",
		c.Import.ChunkSize, c.Import.MaxConcurrentExecutions, c.Import.RetryAttempts)
	fmt.Fprintf(&b, "Repository: {Backend: %q, URL: %q, Token: [MASKED]}, ",
		c.Repository.Backend, c.Repository.URL)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
