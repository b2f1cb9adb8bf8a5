package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

func newCatalogsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "catalogs [TYPE]",
		Short: "List element catalogs, or show the fields of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeJSON(e.stdout, core.Catalogs())
			}
			c, ok := core.GetCatalog(args[0])
			if !ok {
				return withCode(exitUsage, core.ErrUnknownCatalog)
			}
			return writeJSON(e.stdout, c)
		},
	}
}
