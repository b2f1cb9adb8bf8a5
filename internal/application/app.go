// Package application wires configuration into a ready-to-use import
// service: the database pool, the element repository backend, the stores
// and the audit log. The server and the CLI both start here.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/catalog-import/internal/config"
	"github.com/JonMunkholm/catalog-import/internal/core"
	"github.com/JonMunkholm/catalog-import/internal/database"
	"github.com/JonMunkholm/catalog-import/internal/graphclient"
)

// App holds the long-lived dependencies of a running process.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Service *core.Service
}

// New connects to the database, applies migrations when configured and
// builds the service. Close releases the pool.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	pool, err := database.Connect(ctx, PoolConfig(cfg))
	if err != nil {
		return nil, err
	}

	elements, err := NewElementRepository(cfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	service := core.NewService(
		database.NewBatchStore(pool),
		elements,
		database.NewTemplateStore(pool),
		ServiceOptions(cfg, database.NewAuditLog(pool)),
	)
	return &App{Config: cfg, Pool: pool, Service: service}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// PoolConfig maps the database settings onto pool settings.
func PoolConfig(cfg *config.Config) database.PoolConfig {
	return database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	}
}

// NewElementRepository picks the element backend named by
// REPOSITORY_BACKEND.
func NewElementRepository(cfg *config.Config, db database.DBTX) (core.ElementRepository, error) {
	switch cfg.Repository.Backend {
	case "", "postgres":
		return database.NewElementRepository(db), nil
	case "http":
		client, err := graphclient.New(graphclient.Options{
			BaseURL:  cfg.Repository.URL,
			Token:    cfg.Repository.Token,
			Timeout:  cfg.Repository.Timeout,
			RetryMax: cfg.Repository.RetryMax,
			Logger:   slog.Default().With("component", "graphclient"),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown repository backend %q", cfg.Repository.Backend)
	}
}

// ServiceOptions maps the import settings onto service options.
func ServiceOptions(cfg *config.Config, audit core.AuditLog) core.ServiceOptions {
	return core.ServiceOptions{
		ValidationWorkers:       cfg.Import.ValidationWorkers,
		LookupConcurrency:       cfg.Import.LookupConcurrency,
		ChunkSize:               cfg.Import.ChunkSize,
		MaxConcurrentExecutions: cfg.Import.MaxConcurrentExecutions,
		MaxWaitTime:             cfg.Import.MaxWaitTime,
		Executor: core.ExecutorOptions{
			RetryAttempts:    cfg.Import.RetryAttempts,
			RetryBackoff:     cfg.Import.RetryBackoff,
			ProgressInterval: cfg.Import.ProgressInterval,
		},
		Audit: audit,
	}
}

// RetentionConfig maps the audit settings onto the retention scheduler.
func RetentionConfig(cfg *config.Config) core.RetentionConfig {
	return core.RetentionConfig{
		RetentionDays: cfg.Audit.RetentionDays,
		CheckInterval: cfg.Audit.CheckInterval,
	}
}
