package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog-import/internal/application"
	"github.com/JonMunkholm/catalog-import/internal/config"
	"github.com/JonMunkholm/catalog-import/internal/logging"
)

// env carries what every subcommand needs. Tests swap the constructors.
type env struct {
	stdout io.Writer
	stderr io.Writer

	loadConfig func(path string) (*config.Config, error)
	newApp     func(ctx context.Context, cfg *config.Config) (*application.App, error)

	configPath string
	logLevel   string
	cfg        *config.Config
}

func defaultEnv() *env {
	return &env{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		loadConfig: config.LoadFile,
		newApp:     application.New,
	}
}

// app builds the application for one command run.
func (e *env) app(ctx context.Context) (*application.App, error) {
	a, err := e.newApp(ctx, e.cfg)
	if err != nil {
		return nil, withCode(exitBackend, err)
	}
	return a, nil
}

func newRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Catalog import tool: parse, map, validate and apply CSV/TSV/XLSX imports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := e.loadConfig(e.configPath)
			if err != nil {
				return withCode(exitUsage, err)
			}
			if e.logLevel != "" {
				cfg.Logging.Level = e.logLevel
			}
			// stdout carries results; logs go to stderr.
			logging.SetupWriter(e.stderr, cfg.Logging.Level, cfg.Logging.Format)
			e.cfg = cfg
			return nil
		},
	}
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	cmd.PersistentFlags().StringVar(&e.configPath, "config", "", "Config file (default: ./catalogimport.yaml if present)")
	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(newCatalogsCmd(e))
	cmd.AddCommand(newImportCmd(e))
	cmd.AddCommand(newBatchesCmd(e))
	cmd.AddCommand(newBatchCmd(e))
	cmd.AddCommand(newMigrateCmd(e))
	return cmd
}

func Execute() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
