package core

import (
	"fmt"
	"slices"
	"time"
)

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "PENDING"
	BatchInProgress BatchStatus = "IN_PROGRESS"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// CanTransitionTo reports whether s -> next is a legal step. Staying in the
// same non-terminal state is allowed so progress counters can be saved.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	switch s {
	case BatchPending:
		return next == BatchPending || next == BatchInProgress || next == BatchFailed
	case BatchInProgress:
		return next == BatchInProgress || next == BatchCompleted || next == BatchFailed
	}
	return false
}

// ErrorReportEntry is one line of a batch error report.
type ErrorReportEntry struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"error"`
}

// ImportBatch is the audit record of one import execution.
type ImportBatch struct {
	ID           string             `json:"id"`
	Status       BatchStatus        `json:"status"`
	FileName     string             `json:"fileName"`
	UserID       string             `json:"userId"`
	TotalRecords int                `json:"totalRecords"`
	SuccessCount int                `json:"successCount"`
	FailureCount int                `json:"failureCount"`
	SkippedCount int                `json:"skippedCount"`
	CreatedAt    time.Time          `json:"createdAt"`
	CompletedAt  *time.Time         `json:"completedAt,omitempty"`
	ErrorReport  []ErrorReportEntry `json:"errorReport"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (b ImportBatch) Clone() ImportBatch {
	out := b
	out.ErrorReport = slices.Clone(b.ErrorReport)
	if out.ErrorReport == nil {
		out.ErrorReport = []ErrorReportEntry{}
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// NewBatch holds the caller-supplied fields of a new batch.
type NewBatch struct {
	ID           string `json:"id"`
	FileName     string `json:"fileName"`
	UserID       string `json:"userId"`
	TotalRecords int    `json:"totalRecords"`
}

// BatchUpdate is a partial update. Nil fields are left unchanged. When
// ExpectStatus is set the update only applies if the batch is currently in
// that state, which makes it a compare-and-set.
type BatchUpdate struct {
	ExpectStatus *BatchStatus
	Status       *BatchStatus
	TotalRecords *int
	SuccessCount *int
	FailureCount *int
	SkippedCount *int
	CompletedAt  *time.Time
	ErrorReport  []ErrorReportEntry
}

// ApplyUpdate returns b with u applied, enforcing the state machine: the
// expected status must match, transitions only move forward and terminal
// batches cannot change. Stores call this inside their critical section.
func ApplyUpdate(b ImportBatch, u BatchUpdate) (ImportBatch, error) {
	if u.ExpectStatus != nil && b.Status != *u.ExpectStatus {
		return b, fmt.Errorf("%w: batch %s is %s, expected %s", ErrBatchConflict, b.ID, b.Status, *u.ExpectStatus)
	}
	if b.Status.Terminal() {
		return b, fmt.Errorf("%w: batch %s is %s and can no longer change", ErrBatchConflict, b.ID, b.Status)
	}

	out := b.Clone()
	if u.Status != nil {
		if !b.Status.CanTransitionTo(*u.Status) {
			return b, fmt.Errorf("%w: batch %s cannot move from %s to %s", ErrBatchConflict, b.ID, b.Status, *u.Status)
		}
		out.Status = *u.Status
	}
	if u.TotalRecords != nil {
		out.TotalRecords = *u.TotalRecords
	}
	if u.SuccessCount != nil {
		out.SuccessCount = *u.SuccessCount
	}
	if u.FailureCount != nil {
		out.FailureCount = *u.FailureCount
	}
	if u.SkippedCount != nil {
		out.SkippedCount = *u.SkippedCount
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		out.CompletedAt = &t
	}
	if u.ErrorReport != nil {
		out.ErrorReport = slices.Clone(u.ErrorReport)
	}
	return out, nil
}

// BatchPage is one page of batch history.
type BatchPage struct {
	Items    []ImportBatch `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 20

// MaxPageSize caps history page sizes.
const MaxPageSize = 200

// NormalizePage clamps a 1-based page request to sane values.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func ptr[T any](v T) *T { return &v }
