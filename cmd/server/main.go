package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/catalog-import/internal/application"
	"github.com/JonMunkholm/catalog-import/internal/config"
	"github.com/JonMunkholm/catalog-import/internal/core"
	_ "github.com/JonMunkholm/catalog-import/internal/core/catalogs" // Register element catalogs
	"github.com/JonMunkholm/catalog-import/internal/logging"
	"github.com/JonMunkholm/catalog-import/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"repository_backend", cfg.Repository.Backend,
		"max_concurrent_executions", cfg.Import.MaxConcurrentExecutions,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	app, err := application.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	catalogs := core.Catalogs()
	slog.Info("catalogs registered", "count", len(catalogs))
	for _, c := range catalogs {
		slog.Debug("catalog", "element_type", c.ElementType, "fields", len(c.Fields))
	}

	server := web.NewServer(app.Service, cfg, app.Pool)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go app.Service.StartRetentionScheduler(jobCtx, application.RetentionConfig(cfg))

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Running executions hold a batch IN_PROGRESS; let them finish.
		if status := app.Service.ExecutionStatus(); status.Active > 0 {
			slog.Info("waiting for executions to complete", "active", status.Active)
			if err := app.Service.WaitForExecutions(shutdownCtx); err != nil {
				slog.Warn("executions did not complete in time", "error", err)
			} else {
				slog.Info("all executions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
