package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

func newBatchesCmd(e *env) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List import batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Service.ListBatchesPage(ctx, page, pageSize)
			if err != nil {
				return withCode(exitBackend, err)
			}
			return writeJSON(e.stdout, p)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", core.DefaultPageSize, "Batches per page")
	return cmd
}

func newBatchCmd(e *env) *cobra.Command {
	var (
		errorsFormat string
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "batch ID",
		Short: "Show one batch, or export its error report with --errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.Service.GetBatch(ctx, args[0])
			if err != nil {
				return withCode(exitUsage, err)
			}
			if errorsFormat == "" {
				return writeJSON(e.stdout, b)
			}
			return writeErrorReport(e.stdout, outPath, errorsFormat, b.ErrorReport)
		},
	}

	cmd.Flags().StringVar(&errorsFormat, "errors", "", "Export the error report as csv or xlsx")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}

func writeErrorReport(stdout io.Writer, path, format string, entries []core.ErrorReportEntry) (err error) {
	var write func(io.Writer, []core.ErrorReportEntry) error
	switch format {
	case "csv":
		write = core.WriteErrorReportCSV
	case "xlsx":
		write = core.WriteErrorReportXLSX
		if path == "" {
			return withCode(exitUsage, fmt.Errorf("--errors xlsx needs --output"))
		}
	default:
		return withCode(exitUsage, fmt.Errorf("--errors %q: want csv or xlsx", format))
	}

	if path == "" {
		return write(stdout, entries)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, entries)
}
