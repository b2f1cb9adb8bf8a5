package core

import "errors"

var (
	// ErrEmptyInput is reported when the import text has no content at all.
	ErrEmptyInput = errors.New("empty input")

	// ErrMalformedInput wraps tokenizer failures.
	ErrMalformedInput = errors.New("malformed input")

	ErrUnknownCatalog         = errors.New("unknown element type")
	ErrMissingRequiredMapping = errors.New("missing required mapping")
	ErrDuplicateTarget        = errors.New("target field mapped more than once")
	ErrUnknownTarget          = errors.New("unknown target fields")

	// ErrInvalidArgument marks caller mistakes such as a blank batch id.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrNoDuplicateMatch = errors.New("no duplicate match for row")
	ErrInvalidStrategy  = errors.New("invalid duplicate strategy")

	ErrBatchNotFound  = errors.New("batch not found")
	ErrDuplicateBatch = errors.New("batch already exists")
	// ErrBatchConflict means the batch is not in the state the operation
	// requires, e.g. a second execute of the same batch.
	ErrBatchConflict = errors.New("batch state conflict")

	// ErrBackendUnavailable marks a transient failure of the element
	// repository. Callers may retry.
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrElementNotFound    = errors.New("element not found")

	ErrTemplateNotFound  = errors.New("mapping template not found")
	ErrDuplicateTemplate = errors.New("mapping template already exists")
)
