package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalog-import/internal/logging"
	"github.com/JonMunkholm/catalog-import/internal/metrics"
)

// ServiceOptions tunes the pipeline. Zero values pick defaults.
type ServiceOptions struct {
	ValidationWorkers       int
	LookupConcurrency       int
	ChunkSize               int
	Executor                ExecutorOptions
	MaxConcurrentExecutions int
	MaxWaitTime             time.Duration
	// Audit receives audit entries. Nil keeps an in-memory log.
	Audit AuditLog
}

// Service ties the pipeline stages to a batch store, an element repository
// and a template store. It is safe for concurrent use.
type Service struct {
	store     BatchStore
	elements  ElementRepository
	templates TemplateStore
	auditLog  AuditLog
	limiter   *ExecutionLimiter
	opts      ServiceOptions
}

// NewService creates a Service. A nil store or template store falls back to
// the in-memory implementation.
func NewService(store BatchStore, elements ElementRepository, templates TemplateStore, opts ServiceOptions) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	if templates == nil {
		templates = NewMemoryTemplateStore()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Audit == nil {
		opts.Audit = NewMemoryAuditLog()
	}
	return &Service{
		store:     store,
		elements:  elements,
		templates: templates,
		auditLog:  opts.Audit,
		limiter:   NewExecutionLimiter(opts.MaxConcurrentExecutions, opts.MaxWaitTime),
		opts:      opts,
	}
}

// Catalog returns the field catalog for elementType.
func (s *Service) Catalog(elementType string) (Catalog, error) {
	c, ok := GetCatalog(elementType)
	if !ok {
		return Catalog{}, fmt.Errorf("%w: %s", ErrUnknownCatalog, elementType)
	}
	return c, nil
}

// ListCatalogs returns every registered catalog, sorted by element type.
func (s *Service) ListCatalogs() []Catalog {
	return Catalogs()
}

// ParseFile tokenizes an uploaded file.
func (s *Service) ParseFile(fileName string, data []byte) ParseResult {
	res := ParseFile(fileName, data)
	metrics.ParsedRows.Add(float64(res.TotalRows))
	return res
}

// SuggestMappings auto-detects column mappings for headers.
func (s *Service) SuggestMappings(elementType string, headers []string) ([]ColumnMapping, error) {
	c, err := s.Catalog(elementType)
	if err != nil {
		return nil, err
	}
	return c.AutoDetectMappings(headers), nil
}

// ValidateMappings checks mappings against the catalog of elementType.
func (s *Service) ValidateMappings(elementType string, mappings []ColumnMapping) (MappingValidation, error) {
	c, err := s.Catalog(elementType)
	if err != nil {
		return MappingValidation{}, err
	}
	return c.ValidateMappings(mappings), nil
}

// ValidateRows maps and validates parsed rows. Row indices start at 1.
// Mappings that leave a required field unmapped are rejected up front.
func (s *Service) ValidateRows(ctx context.Context, elementType string, rows []RawRow, mappings []ColumnMapping) (BatchValidation, error) {
	c, err := s.Catalog(elementType)
	if err != nil {
		return BatchValidation{}, err
	}
	if err := c.ValidateMappings(mappings).Err(); err != nil {
		return BatchValidation{}, err
	}

	records, err := NewValidator(c, s.opts.ValidationWorkers).ValidateRows(ctx, 1, rows, mappings)
	if err != nil {
		return BatchValidation{}, fmt.Errorf("validate rows: %w", err)
	}
	return ValidateBatch(records), nil
}

// DetectDuplicates looks up existing elements for the valid records.
func (s *Service) DetectDuplicates(ctx context.Context, elementType string, records []ImportRecord) (DetectionResult, error) {
	c, err := s.Catalog(elementType)
	if err != nil {
		return DetectionResult{}, err
	}
	return NewDuplicateDetector(s.elements, c, s.opts.LookupConcurrency).Detect(ctx, records)
}

// ResolveStrategies applies per-row strategy overrides to matches. Every
// override must name a matched row.
func (s *Service) ResolveStrategies(matches []DuplicateMatch, overrides map[int]DuplicateStrategy) ([]DuplicateMatch, error) {
	res := NewResolution(matches)
	for row, strategy := range overrides {
		if err := res.AssignStrategy(row, strategy); err != nil {
			return nil, err
		}
	}
	return res.Matches(), nil
}

// CreateBatch registers a new PENDING batch. The id is chosen by the caller.
// When UserID is empty the user from ctx is recorded.
func (s *Service) CreateBatch(ctx context.Context, nb NewBatch) (ImportBatch, error) {
	nb.ID = strings.TrimSpace(nb.ID)
	if nb.ID == "" {
		return ImportBatch{}, fmt.Errorf("%w: batch id is required", ErrInvalidArgument)
	}
	if nb.UserID == "" {
		nb.UserID = UserIDFromContext(ctx)
	}

	b := ImportBatch{
		ID:           nb.ID,
		Status:       BatchPending,
		FileName:     nb.FileName,
		UserID:       nb.UserID,
		TotalRecords: nb.TotalRecords,
		CreatedAt:    time.Now().UTC(),
		ErrorReport:  []ErrorReportEntry{},
	}
	if err := s.store.Create(ctx, b); err != nil {
		return ImportBatch{}, fmt.Errorf("create batch: %w", err)
	}

	logging.WithFields(ctx, "batch_id", b.ID).Info("batch created",
		"file", b.FileName,
		"user_id", b.UserID,
		"ip", IPAddressFromContext(ctx),
		"total_records", b.TotalRecords,
	)
	s.audit(ctx, AuditEntry{
		Action:  ActionBatchCreate,
		BatchID: b.ID,
		UserID:  b.UserID,
		Details: map[string]any{"fileName": b.FileName, "totalRecords": b.TotalRecords},
	})
	return b, nil
}

// UpdateBatch applies a partial update to a batch.
func (s *Service) UpdateBatch(ctx context.Context, id string, u BatchUpdate) (ImportBatch, error) {
	return s.store.Update(ctx, id, u)
}

// ExecuteBatch runs plan against the element repository as batch batchID.
// A batch that is no longer PENDING is rejected with ErrBatchConflict before
// waiting for an execution slot; see ExecutionLimiter.
func (s *Service) ExecuteBatch(ctx context.Context, elementType, batchID string, plan ExecutionPlan) (ImportBatch, error) {
	if _, err := s.Catalog(elementType); err != nil {
		return ImportBatch{}, err
	}
	current, err := s.store.Get(ctx, batchID)
	if err != nil {
		return ImportBatch{}, err
	}
	if current.Status != BatchPending {
		return ImportBatch{}, fmt.Errorf("%w: batch %s is %s", ErrBatchConflict, batchID, current.Status)
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportBatch{}, err
	}
	defer s.limiter.Release()

	b, err := NewExecutor(s.store, s.elements, elementType, s.opts.Executor).Execute(ctx, batchID, plan)
	if b.ID != "" {
		s.audit(ctx, AuditEntry{
			Action:       ActionBatchExecute,
			ElementType:  elementType,
			BatchID:      b.ID,
			RowsAffected: b.SuccessCount,
			Details: map[string]any{
				"status":   string(b.Status),
				"failures": b.FailureCount,
				"skipped":  b.SkippedCount,
			},
		})
	}
	return b, err
}

// SubmittedRow is a mapped row sent back by a client for execution.
type SubmittedRow struct {
	RowIndex int               `json:"rowIndex" validate:"min=1"`
	Fields   map[string]string `json:"fields" validate:"required"`
}

// ExecuteSubmitted re-validates client-supplied rows, applies the chosen
// duplicate strategies and executes the result as batch batchID. Rows are
// always validated again on the server.
func (s *Service) ExecuteSubmitted(ctx context.Context, elementType, batchID string, rows []SubmittedRow, matches []DuplicateMatch) (ImportBatch, error) {
	c, err := s.Catalog(elementType)
	if err != nil {
		return ImportBatch{}, err
	}
	for _, m := range matches {
		if m.Strategy != "" && !m.Strategy.Valid() {
			return ImportBatch{}, fmt.Errorf("%w: %q", ErrInvalidStrategy, m.Strategy)
		}
	}

	records, err := recordsFromSubmitted(c, s.opts.ValidationWorkers, rows)
	if err != nil {
		return ImportBatch{}, err
	}
	plan := BuildPlan(records, NewResolution(matches))
	return s.ExecuteBatch(ctx, elementType, batchID, plan)
}

// RecordsFromSubmitted validates client-supplied mapped rows.
func (s *Service) RecordsFromSubmitted(elementType string, rows []SubmittedRow) ([]ImportRecord, error) {
	c, err := s.Catalog(elementType)
	if err != nil {
		return nil, err
	}
	return recordsFromSubmitted(c, s.opts.ValidationWorkers, rows)
}

// recordsFromSubmitted validates rows. Row indexes must be positive and
// unique.
func recordsFromSubmitted(c Catalog, workers int, rows []SubmittedRow) ([]ImportRecord, error) {
	v := NewValidator(c, workers)
	seen := make(map[int]bool, len(rows))
	records := make([]ImportRecord, len(rows))
	for i, r := range rows {
		if r.RowIndex < 1 {
			return nil, fmt.Errorf("%w: row index %d must be positive", ErrInvalidArgument, r.RowIndex)
		}
		if seen[r.RowIndex] {
			return nil, fmt.Errorf("%w: row index %d submitted more than once", ErrInvalidArgument, r.RowIndex)
		}
		seen[r.RowIndex] = true
		records[i] = v.RecordFromMapped(r.RowIndex, r.Fields)
	}
	return records, nil
}

// GetBatch returns a snapshot of one batch.
func (s *Service) GetBatch(ctx context.Context, id string) (ImportBatch, error) {
	return s.store.Get(ctx, id)
}

// ListBatches returns every batch, newest first.
func (s *Service) ListBatches(ctx context.Context) ([]ImportBatch, error) {
	return s.store.List(ctx)
}

// ListBatchesPage returns one page of batch history.
func (s *Service) ListBatchesPage(ctx context.Context, page, pageSize int) (BatchPage, error) {
	page, pageSize = NormalizePage(page, pageSize)
	return s.store.Page(ctx, page, pageSize)
}

// ErrorReport returns the error report of a batch.
func (s *Service) ErrorReport(ctx context.Context, id string) ([]ErrorReportEntry, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.ErrorReport, nil
}

// GetElement fetches an existing element, e.g. to preview a duplicate.
func (s *Service) GetElement(ctx context.Context, id string) (*Element, error) {
	return s.elements.GetElement(ctx, id)
}

// ExecutionStatus reports execution slot usage.
func (s *Service) ExecutionStatus() ExecutionLimiterStatus {
	return s.limiter.Status()
}

// WaitForExecutions blocks until running executions finish or ctx ends.
func (s *Service) WaitForExecutions(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ImportRequest drives a whole import in one call, as the CLI does.
type ImportRequest struct {
	ElementType string
	FileName    string
	UserID      string
	Reader      io.Reader
	// Mappings overrides auto-detection when non-nil.
	Mappings []ColumnMapping
	// DefaultStrategy applies to every duplicate match; Strategies then
	// overrides individual rows.
	DefaultStrategy DuplicateStrategy
	Strategies      map[int]DuplicateStrategy
	// Apply executes the plan. Without it the import is a dry run.
	Apply bool
	// BatchID defaults to a new UUID.
	BatchID string
}

// ImportOutcome is what RunImport learned and, with Apply, what it did.
type ImportOutcome struct {
	Headers    []string          `json:"headers"`
	Mappings   []ColumnMapping   `json:"mappings"`
	Validation MappingValidation `json:"validation"`
	Records    BatchValidation   `json:"records"`
	Duplicates DetectionResult   `json:"duplicates"`
	Plan       ExecutionPlan     `json:"plan"`
	Batch      *ImportBatch      `json:"batch,omitempty"`
}

// RunImport parses, maps, validates, detects duplicates and builds a plan
// from req.Reader, executing it when req.Apply is set. Delimited text is
// streamed in chunks; workbooks are read whole.
//
// When the mappings are unusable the outcome is returned together with the
// mapping error so callers can show what was detected.
func (s *Service) RunImport(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	c, err := s.Catalog(req.ElementType)
	if err != nil {
		return nil, err
	}
	logger := logging.WithFields(ctx, "element_type", req.ElementType, "file", req.FileName)

	out := &ImportOutcome{}
	var records []ImportRecord
	v := NewValidator(c, s.opts.ValidationWorkers)

	if strings.EqualFold(filepath.Ext(req.FileName), ".xlsx") {
		data, err := io.ReadAll(req.Reader)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", req.FileName, err)
		}
		parsed := s.ParseFile(req.FileName, data)
		if parsed.Failed() {
			return nil, parsed.Err()
		}
		out.Headers = parsed.Headers
		if err := s.prepareMappings(out, c, req.Mappings); err != nil {
			return out, err
		}
		records, err = v.ValidateRows(ctx, 1, parsed.Rows, out.Mappings)
		if err != nil {
			return nil, fmt.Errorf("validate rows: %w", err)
		}
	} else {
		cr, err := NewChunkReader(req.Reader, s.opts.ChunkSize)
		if err != nil {
			return nil, err
		}
		out.Headers = cr.Headers()
		if err := s.prepareMappings(out, c, req.Mappings); err != nil {
			return out, err
		}
		for chunk, cerr := range cr.All() {
			if cerr != nil {
				return nil, fmt.Errorf("parse %s: %w", req.FileName, cerr)
			}
			metrics.ParsedRows.Add(float64(len(chunk.Rows)))
			recs, err := v.ValidateRows(ctx, chunk.StartRow, chunk.Rows, out.Mappings)
			if err != nil {
				return nil, fmt.Errorf("validate rows %d-%d: %w", chunk.StartRow, chunk.RowIndex(len(chunk.Rows)-1), err)
			}
			records = append(records, recs...)
		}
	}

	out.Records = ValidateBatch(records)
	logger.Info("rows validated",
		"valid", len(out.Records.ValidRecords),
		"invalid", len(out.Records.InvalidRecords),
	)

	out.Duplicates, err = NewDuplicateDetector(s.elements, c, s.opts.LookupConcurrency).Detect(ctx, records)
	if err != nil {
		return out, fmt.Errorf("detect duplicates: %w", err)
	}

	res := NewResolution(out.Duplicates.Matches)
	if req.DefaultStrategy != "" {
		for _, m := range res.Matches() {
			if err := res.AssignStrategy(m.RowIndex, req.DefaultStrategy); err != nil {
				return out, err
			}
		}
	}
	for row, strategy := range req.Strategies {
		if err := res.AssignStrategy(row, strategy); err != nil {
			return out, err
		}
	}
	out.Duplicates.Matches = res.Matches()
	out.Plan = BuildPlan(records, res)

	if !req.Apply {
		return out, nil
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	if _, err := s.CreateBatch(ctx, NewBatch{
		ID:           batchID,
		FileName:     req.FileName,
		UserID:       req.UserID,
		TotalRecords: out.Plan.TotalRecords(),
	}); err != nil {
		return out, err
	}

	b, err := s.ExecuteBatch(ctx, req.ElementType, batchID, out.Plan)
	if b.ID != "" {
		out.Batch = &b
	}
	return out, err
}

// prepareMappings fills in the mappings for out.Headers and checks them.
func (s *Service) prepareMappings(out *ImportOutcome, c Catalog, mappings []ColumnMapping) error {
	if mappings == nil {
		mappings = c.AutoDetectMappings(out.Headers)
	}
	out.Mappings = mappings
	out.Validation = c.ValidateMappings(mappings)
	return out.Validation.Err()
}
