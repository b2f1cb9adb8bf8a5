package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

type importOptions struct {
	file        string
	elementType string
	apply       bool
	strategy    string
	overrides   []string
	mappings    []string
	templateID  string
	batchID     string
	userID      string
	full        bool
}

func newImportCmd(e *env) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a CSV, TSV or XLSX file (dry-run unless --apply)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.file = args[0]
			return runImport(cmd.Context(), e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.elementType, "type", "application", "Element type to import")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write to the repository (default is dry-run)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Strategy for every duplicate: UPDATE_EXISTING, CREATE_NEW or SKIP (default UPDATE_EXISTING)")
	cmd.Flags().StringArrayVar(&opts.overrides, "row-strategy", nil, "Per-row strategy as ROW=STRATEGY (repeatable)")
	cmd.Flags().StringArrayVar(&opts.mappings, "map", nil, "Column mapping as HEADER=FIELD; disables auto-detection (repeatable)")
	cmd.Flags().StringVar(&opts.templateID, "template", "", "Use the mappings of a saved template")
	cmd.Flags().StringVar(&opts.batchID, "batch-id", "", "Batch id for --apply (default: new UUID)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "User recorded on the batch and audit log")
	cmd.Flags().BoolVar(&opts.full, "full", false, "Print the full outcome including every record")

	cmd.MarkFlagsMutuallyExclusive("map", "template")
	return cmd
}

// importSummary is the default output of the import command.
type importSummary struct {
	ElementType string                  `json:"elementType"`
	File        string                  `json:"file"`
	Applied     bool                    `json:"applied"`
	Headers     []string                `json:"headers"`
	Mappings    []core.ColumnMapping    `json:"mappings"`
	Validation  core.MappingValidation  `json:"validation"`
	Valid       int                     `json:"valid"`
	Invalid     int                     `json:"invalid"`
	Duplicates  int                     `json:"duplicates"`
	Warnings    []core.DuplicateWarning `json:"warnings,omitempty"`
	Plan        map[core.PlanAction]int `json:"plan"`
	Rejected    int                     `json:"rejected"`
	Errors      []core.ErrorReportEntry `json:"errors,omitempty"`
	Batch       *core.ImportBatch       `json:"batch,omitempty"`
}

func summarize(opts importOptions, out *core.ImportOutcome) importSummary {
	s := importSummary{
		ElementType: opts.elementType,
		File:        filepath.Base(opts.file),
		Applied:     out.Batch != nil,
		Headers:     out.Headers,
		Mappings:    out.Mappings,
		Validation:  out.Validation,
		Valid:       len(out.Records.ValidRecords),
		Invalid:     len(out.Records.InvalidRecords),
		Duplicates:  len(out.Duplicates.Matches),
		Warnings:    out.Duplicates.Warnings,
		Plan:        map[core.PlanAction]int{},
		Rejected:    len(out.Plan.Rejected),
		Batch:       out.Batch,
	}
	for _, row := range out.Plan.Rows {
		s.Plan[row.Action]++
	}
	if out.Batch == nil {
		s.Errors = core.ValidationReport(out.Records.InvalidRecords)
	}
	return s
}

func runImport(ctx context.Context, e *env, opts importOptions) error {
	req, err := buildImportRequest(opts)
	if err != nil {
		return withCode(exitUsage, err)
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("open %s: %w", opts.file, err))
	}
	defer f.Close()
	req.Reader = f

	a, err := e.app(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.templateID != "" {
		t, err := a.Service.GetTemplate(ctx, opts.templateID)
		if err != nil {
			return withCode(exitUsage, err)
		}
		if t.ElementType != opts.elementType {
			return withCode(exitUsage, fmt.Errorf("template %s is for %q, not %q", t.ID, t.ElementType, opts.elementType))
		}
		req.Mappings = t.Mappings
	}

	out, runErr := a.Service.RunImport(ctx, req)
	if out != nil {
		var err error
		if opts.full {
			err = writeJSON(e.stdout, out)
		} else {
			err = writeJSON(e.stdout, summarize(opts, out))
		}
		if err != nil {
			return err
		}
	}

	switch {
	case runErr == nil:
	case isValidationErr(runErr):
		return withCode(exitValidation, runErr)
	case errors.Is(runErr, core.ErrBackendUnavailable):
		return withCode(exitBackend, runErr)
	default:
		return runErr
	}

	if out.Batch != nil && out.Batch.FailureCount > 0 {
		return withCode(exitRowFailures, fmt.Errorf("batch %s: %d of %d rows failed", out.Batch.ID, out.Batch.FailureCount, out.Batch.TotalRecords))
	}
	return nil
}

func isValidationErr(err error) bool {
	for _, target := range []error{
		core.ErrEmptyInput,
		core.ErrMalformedInput,
		core.ErrUnknownCatalog,
		core.ErrMissingRequiredMapping,
		core.ErrDuplicateTarget,
		core.ErrUnknownTarget,
		core.ErrInvalidStrategy,
		core.ErrNoDuplicateMatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// buildImportRequest turns flags into a request. Reader and template
// mappings are filled in by the caller.
func buildImportRequest(opts importOptions) (core.ImportRequest, error) {
	req := core.ImportRequest{
		ElementType: opts.elementType,
		FileName:    filepath.Base(opts.file),
		UserID:      opts.userID,
		Apply:       opts.apply,
		BatchID:     opts.batchID,
	}

	if opts.strategy != "" {
		st, err := core.ParseDuplicateStrategy(opts.strategy)
		if err != nil {
			return req, fmt.Errorf("--strategy: %w", err)
		}
		req.DefaultStrategy = st
	}

	strategies, err := parseRowStrategies(opts.overrides)
	if err != nil {
		return req, err
	}
	req.Strategies = strategies

	if len(opts.mappings) > 0 {
		c, ok := core.GetCatalog(opts.elementType)
		if !ok {
			return req, fmt.Errorf("%w: %s", core.ErrUnknownCatalog, opts.elementType)
		}
		if req.Mappings, err = parseMappings(c, opts.mappings); err != nil {
			return req, err
		}
	}
	return req, nil
}

// parseMappings reads HEADER=FIELD pairs. An empty FIELD ignores the column.
func parseMappings(c core.Catalog, pairs []string) ([]core.ColumnMapping, error) {
	out := make([]core.ColumnMapping, 0, len(pairs))
	for _, p := range pairs {
		header, field, ok := strings.Cut(p, "=")
		header = strings.TrimSpace(header)
		if !ok || header == "" {
			return nil, fmt.Errorf("--map %q: want HEADER=FIELD", p)
		}
		m := core.ColumnMapping{CSVHeader: header, TargetField: strings.TrimSpace(field)}
		if def, ok := c.Field(m.TargetField); ok {
			m.Required = def.Required
		}
		out = append(out, m)
	}
	return out, nil
}

func parseRowStrategies(pairs []string) (map[int]core.DuplicateStrategy, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[int]core.DuplicateStrategy, len(pairs))
	for _, p := range pairs {
		rowStr, name, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("--row-strategy %q: want ROW=STRATEGY", p)
		}
		row, err := strconv.Atoi(strings.TrimSpace(rowStr))
		if err != nil || row < 1 {
			return nil, fmt.Errorf("--row-strategy %q: invalid row number", p)
		}
		st, err := core.ParseDuplicateStrategy(name)
		if err != nil {
			return nil, fmt.Errorf("--row-strategy %q: %w", p, err)
		}
		out[row] = st
	}
	return out, nil
}
