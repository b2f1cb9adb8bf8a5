package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

// BatchStore is a core.BatchStore on the import_batches table. Update locks
// the row for the duration of its transaction, which serializes concurrent
// claims of the same batch.
type BatchStore struct {
	db TxBeginner
}

// NewBatchStore creates a BatchStore.
func NewBatchStore(db TxBeginner) *BatchStore {
	return &BatchStore{db: db}
}

var _ core.BatchStore = (*BatchStore)(nil)

const batchColumns = `id, status, file_name, user_id, total_records, success_count,
	failure_count, skipped_count, created_at, completed_at, error_report`

func (s *BatchStore) Create(ctx context.Context, b core.ImportBatch) error {
	report, err := marshalReport(b.ErrorReport)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO import_batches (`+batchColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, string(b.Status), b.FileName, b.UserID, b.TotalRecords, b.SuccessCount,
		b.FailureCount, b.SkippedCount, b.CreatedAt, b.CompletedAt, report,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", core.ErrDuplicateBatch, b.ID)
	}
	return classify("insert batch", err)
}

func (s *BatchStore) Get(ctx context.Context, id string) (core.ImportBatch, error) {
	return getBatch(ctx, s.db, id, "")
}

func getBatch(ctx context.Context, db DBTX, id, lock string) (core.ImportBatch, error) {
	b, err := scanBatch(db.QueryRow(ctx, `SELECT `+batchColumns+` FROM import_batches WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ImportBatch{}, fmt.Errorf("%w: %s", core.ErrBatchNotFound, id)
	}
	if err != nil {
		return core.ImportBatch{}, classify("get batch", err)
	}
	return b, nil
}

// Update applies u inside a transaction holding the row lock.
func (s *BatchStore) Update(ctx context.Context, id string, u core.BatchUpdate) (core.ImportBatch, error) {
	var out core.ImportBatch
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		current, err := getBatch(ctx, tx, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		next, err := core.ApplyUpdate(current, u)
		if err != nil {
			return err
		}
		report, err := marshalReport(next.ErrorReport)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE import_batches
			 SET status = $2, total_records = $3, success_count = $4, failure_count = $5,
			     skipped_count = $6, completed_at = $7, error_report = $8
			 WHERE id = $1`,
			id, string(next.Status), next.TotalRecords, next.SuccessCount, next.FailureCount,
			next.SkippedCount, next.CompletedAt, report,
		)
		if err != nil {
			return classify("update batch", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return core.ImportBatch{}, err
	}
	return out, nil
}

func (s *BatchStore) List(ctx context.Context) ([]core.ImportBatch, error) {
	rows, err := s.db.Query(ctx, `SELECT `+batchColumns+` FROM import_batches ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, classify("list batches", err)
	}
	return collectBatches(rows)
}

func (s *BatchStore) Page(ctx context.Context, page, pageSize int) (core.BatchPage, error) {
	page, pageSize = core.NormalizePage(page, pageSize)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM import_batches`).Scan(&total); err != nil {
		return core.BatchPage{}, classify("count batches", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+batchColumns+` FROM import_batches
		 ORDER BY created_at DESC, seq DESC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return core.BatchPage{}, classify("list batches", err)
	}
	items, err := collectBatches(rows)
	if err != nil {
		return core.BatchPage{}, err
	}
	return core.BatchPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func collectBatches(rows pgx.Rows) ([]core.ImportBatch, error) {
	defer rows.Close()

	out := []core.ImportBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, classify("scan batch", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list batches", err)
	}
	return out, nil
}

func scanBatch(row pgx.Row) (core.ImportBatch, error) {
	var (
		b           core.ImportBatch
		status      string
		completedAt *time.Time
		report      []byte
	)
	err := row.Scan(&b.ID, &status, &b.FileName, &b.UserID, &b.TotalRecords, &b.SuccessCount,
		&b.FailureCount, &b.SkippedCount, &b.CreatedAt, &completedAt, &report)
	if err != nil {
		return core.ImportBatch{}, err
	}

	b.Status = core.BatchStatus(status)
	b.CompletedAt = completedAt
	b.ErrorReport = []core.ErrorReportEntry{}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &b.ErrorReport); err != nil {
			return core.ImportBatch{}, fmt.Errorf("decode error report of %s: %w", b.ID, err)
		}
	}
	return b, nil
}

func marshalReport(report []core.ErrorReportEntry) ([]byte, error) {
	if report == nil {
		report = []core.ErrorReportEntry{}
	}
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode error report: %w", err)
	}
	return data, nil
}
