package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/catalog-import/internal/logging"
	"github.com/JonMunkholm/catalog-import/internal/metrics"
)

// DefaultProgressInterval is the number of rows between progress saves.
const DefaultProgressInterval = 100

// ExecutorOptions tunes an Executor. Zero values pick defaults.
type ExecutorOptions struct {
	// RetryAttempts is how many extra times a row write is tried when the
	// backend reports ErrBackendUnavailable.
	RetryAttempts int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff     time.Duration
	ProgressInterval int
	Now              func() time.Time
}

// Executor runs an execution plan against the element repository and keeps
// the batch record in step.
type Executor struct {
	store       BatchStore
	writer      ElementWriter
	elementType string
	opts        ExecutorOptions
}

// NewExecutor creates an executor writing elements of elementType.
func NewExecutor(store BatchStore, writer ElementWriter, elementType string, opts ExecutorOptions) *Executor {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{store: store, writer: writer, elementType: elementType, opts: opts}
}

type tally struct {
	success int
	failure int
	skipped int
	report  []ErrorReportEntry
}

func (t tally) update(status BatchStatus) BatchUpdate {
	return BatchUpdate{
		ExpectStatus: ptr(BatchInProgress),
		Status:       ptr(status),
		SuccessCount: ptr(t.success),
		FailureCount: ptr(t.failure),
		SkippedCount: ptr(t.skipped),
	}
}

// Execute claims the PENDING batch, processes every row of plan in row order
// and finishes the batch as COMPLETED. A batch that is not PENDING is
// rejected with ErrBatchConflict, so a batch runs at most once.
//
// A failed write is recorded in the error report and counted; the run goes
// on with the next row. Rejected records contribute their validation errors
// and count as failures. The run ignores cancellation of ctx: once started,
// a batch finishes.
func (e *Executor) Execute(ctx context.Context, batchID string, plan ExecutionPlan) (ImportBatch, error) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithFields(ctx, "batch_id", batchID, "element_type", e.elementType)
	start := time.Now()

	if _, err := e.store.Update(ctx, batchID, BatchUpdate{
		ExpectStatus: ptr(BatchPending),
		Status:       ptr(BatchInProgress),
		TotalRecords: ptr(plan.TotalRecords()),
	}); err != nil {
		return ImportBatch{}, fmt.Errorf("start batch %s: %w", batchID, err)
	}
	logger.Info("batch execution started", "rows", len(plan.Rows), "rejected", len(plan.Rejected))

	t, runErr := e.process(ctx, batchID, plan, logger)

	status := BatchCompleted
	if runErr != nil {
		status = BatchFailed
	}
	u := t.update(status)
	u.CompletedAt = ptr(e.opts.Now())
	u.ErrorReport = t.report
	if u.ErrorReport == nil {
		u.ErrorReport = []ErrorReportEntry{}
	}

	final, err := e.store.Update(ctx, batchID, u)
	if err != nil {
		logger.Error("failed to finish batch", "status", status, "error", err)
		return ImportBatch{}, fmt.Errorf("finish batch %s: %w", batchID, errors.Join(runErr, err))
	}

	metrics.BatchesFinished.WithLabelValues(string(status)).Inc()
	metrics.ExecutionDuration.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
	metrics.RowsProcessed.WithLabelValues("success").Add(float64(t.success))
	metrics.RowsProcessed.WithLabelValues("failure").Add(float64(t.failure))
	metrics.RowsProcessed.WithLabelValues("skipped").Add(float64(t.skipped))

	if runErr != nil {
		logger.Error("batch execution failed", "error", runErr)
		return final, fmt.Errorf("execute batch %s: %w", batchID, runErr)
	}

	logger.Info("batch execution completed",
		"success", t.success,
		"failure", t.failure,
		"skipped", t.skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return final, nil
}

// step is either a rejected record or a planned row.
type step struct {
	rowIndex int
	rejected *ImportRecord
	row      *PlannedRow
}

// mergeSteps interleaves rejected records and planned rows by row index.
func mergeSteps(plan ExecutionPlan) []step {
	steps := make([]step, 0, plan.TotalRecords())
	i, j := 0, 0
	for i < len(plan.Rows) || j < len(plan.Rejected) {
		if j >= len(plan.Rejected) || (i < len(plan.Rows) && plan.Rows[i].RowIndex <= plan.Rejected[j].RowIndex) {
			steps = append(steps, step{rowIndex: plan.Rows[i].RowIndex, row: &plan.Rows[i]})
			i++
			continue
		}
		steps = append(steps, step{rowIndex: plan.Rejected[j].RowIndex, rejected: &plan.Rejected[j]})
		j++
	}
	return steps
}

func (e *Executor) process(ctx context.Context, batchID string, plan ExecutionPlan, logger *slog.Logger) (t tally, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execution panicked: %v", r)
		}
	}()

	for n, s := range mergeSteps(plan) {
		switch {
		case s.rejected != nil:
			t.failure++
			t.report = appendRecordErrors(t.report, s.rowIndex, s.rejected.Errors)

		case s.row.Action == ActionSkip:
			t.skipped++

		default:
			if werr := e.write(ctx, *s.row); werr != nil {
				t.failure++
				t.report = append(t.report, ErrorReportEntry{
					Row:     s.rowIndex,
					Field:   KeyName,
					Value:   s.row.Name,
					Message: werr.Error(),
				})
				logger.Warn("row write failed", "row", s.rowIndex, "action", s.row.Action, "error", werr)
			} else {
				t.success++
			}
		}

		if (n+1)%e.opts.ProgressInterval == 0 {
			if _, perr := e.store.Update(ctx, batchID, t.update(BatchInProgress)); perr != nil {
				return t, fmt.Errorf("save progress: %w", perr)
			}
		}
	}
	return t, nil
}

// write upserts one row, retrying while the backend is unavailable.
func (e *Executor) write(ctx context.Context, row PlannedRow) error {
	id := ""
	if row.Action == ActionUpdate {
		id = row.ElementID
	}

	var err error
	for attempt := 0; attempt <= e.opts.RetryAttempts; attempt++ {
		if attempt > 0 && e.opts.RetryBackoff > 0 {
			time.Sleep(time.Duration(attempt) * e.opts.RetryBackoff)
		}
		_, err = e.writer.Upsert(ctx, e.elementType, id, row.Attributes)
		if err == nil || !errors.Is(err, ErrBackendUnavailable) {
			return err
		}
	}
	return err
}
