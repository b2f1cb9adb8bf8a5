package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog-import/internal/database"
)

func newMigrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Migrate(e.cfg.Database.URL); err != nil {
				return withCode(exitBackend, err)
			}
			fmt.Fprintln(e.stdout, "migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return withCode(exitUsage, fmt.Errorf("--steps must be at least 1"))
			}
			if err := database.MigrateDown(e.cfg.Database.URL, steps); err != nil {
				return withCode(exitBackend, err)
			}
			fmt.Fprintf(e.stdout, "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)
	return cmd
}
