package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "empty input maps correctly",
			err:         ErrEmptyInput,
			wantCode:    "PARSE001",
			wantMessage: "The file is empty",
		},
		{
			name:        "wrapped malformed input maps correctly",
			err:         fmt.Errorf("parse a.csv: %w: record on line 3: extraneous \" in field", ErrMalformedInput),
			wantCode:    "PARSE002",
			wantMessage: "The file could not be read as CSV",
		},
		{
			name:        "missing required mapping maps correctly",
			err:         fmt.Errorf("%w: name", ErrMissingRequiredMapping),
			wantCode:    "MAP001",
			wantMessage: "A required field has no mapped column",
		},
		{
			name:        "duplicate template maps correctly",
			err:         fmt.Errorf("create template: %w: Vendor export", ErrDuplicateTemplate),
			wantCode:    "MAP006",
			wantMessage: "A mapping template with this name already exists",
		},
		{
			name:        "enum field error maps correctly",
			err:         FieldError{Field: "lifecycleStatus", Message: "invalid enum value for Lifecycle Status: must be one of: Planned, Active"},
			wantCode:    "VAL003",
			wantMessage: "Value is not in the allowed list",
		},
		{
			name:        "batch conflict maps correctly",
			err:         fmt.Errorf("start batch b1: %w", ErrBatchConflict),
			wantCode:    "BATCH003",
			wantMessage: "This import batch has already been started",
		},
		{
			name:        "execution limit maps correctly",
			err:         ErrTooManyExecutions,
			wantCode:    "EXEC001",
			wantMessage: "System is busy running other imports",
		},
		{
			name:        "backend unavailable maps correctly",
			err:         fmt.Errorf("row 4: %w: find by name: dial tcp", ErrBackendUnavailable),
			wantCode:    "EXEC002",
			wantMessage: "The element repository is unavailable",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("BATCH NOT FOUND: b9"),
			wantCode:    "BATCH001",
			wantMessage: "Import batch not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(fmt.Errorf("execute: %w", ErrBatchNotFound))

	expected := "Import batch not found (Code: BATCH001). Check the batch ID"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  ErrInvalidStrategy,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("create batch: %w", ErrDuplicateBatch)
		userErr := NewUserError(techErr)

		if userErr.Error() != "An import batch with this ID already exists" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if userErr.User.Code != "BATCH002" {
			t.Errorf("Code = %q, want BATCH002", userErr.User.Code)
		}
		if !errors.Is(userErr, ErrDuplicateBatch) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
