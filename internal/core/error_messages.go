package core

// error_messages.go maps technical errors to user-facing messages with a
// code support staff can look up.
//
// # Parse Errors (PARSE001-PARSE099)
//
//	PARSE001 The file is empty (pattern "empty input")
//	PARSE002 The file could not be read as CSV (pattern "malformed input")
//	PARSE003 File exceeds the maximum upload size (pattern "file too large")
//	PARSE004 No file was selected (pattern "no file provided")
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001   A required field has no mapped column (pattern "missing required mapping")
//	MAP002   Two columns are mapped to the same field (pattern "target field mapped more than once")
//	MAP003   A column is mapped to a field that does not exist (pattern "unknown target fields")
//	MAP004   Unknown element type (pattern "unknown element type")
//	MAP005   Mapping template not found (pattern "mapping template not found")
//	MAP006   A mapping template with this name already exists (pattern "mapping template already exists")
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001   Required field is empty (pattern "required field is empty")
//	VAL002   Invalid number format detected (pattern "invalid number")
//	VAL003   Value is not in the allowed list (pattern "invalid enum")
//	VAL004   Value contains characters that are not allowed (pattern "not allowed")
//	VAL005   Value is too long (pattern "exceeds")
//
// # Duplicate Errors (DUP001-DUP099)
//
//	DUP001   This row has no duplicate to resolve (pattern "no duplicate match")
//	DUP002   Unknown duplicate strategy (pattern "invalid duplicate strategy")
//
// # Batch Errors (BATCH001-BATCH099)
//
//	BATCH001 Import batch not found (pattern "batch not found")
//	BATCH002 An import batch with this ID already exists (pattern "batch already exists")
//	BATCH003 This import batch has already been started (pattern "batch state conflict")
//
// # Execution Errors (EXEC001-EXEC099)
//
//	EXEC001  System is busy running other imports (pattern "too many concurrent executions")
//	EXEC002  The element repository is unavailable (pattern "backend unavailable")
//	EXEC003  Element not found (pattern "element not found")
//
// # Database Errors (DB001-DB099)
//
//	DB001    A record with this ID already exists (pattern "duplicate key")
//	DB002    Unable to connect to database (pattern "connection refused")
//	DB003    Database connection was interrupted (pattern "connection reset")
//
// # Request Errors (REQ001-REQ099, RATE001)
//
//	REQ001   Request was cancelled (pattern "context canceled")
//	REQ002   Request timed out (pattern "context deadline exceeded")
//	REQ003   Operation timed out (pattern "timeout")
//	RATE001  Too many requests (pattern "rate limit")
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones. ERR000
// is the fallback; check the logs for the technical error behind it.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Parse Errors
	{
		pattern: "empty input",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Upload a file with a header row and at least one data row",
			Code:    "PARSE001",
		},
	},
	{
		pattern: "malformed input",
		msg: UserMessage{
			Message: "The file could not be read as CSV",
			Action:  "Check quoting: fields containing the delimiter or line breaks must be wrapped in double quotes",
			Code:    "PARSE002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "PARSE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Select a CSV, TSV or XLSX file to import",
			Code:    "PARSE004",
		},
	},

	// Mapping Errors
	{
		pattern: "missing required mapping",
		msg: UserMessage{
			Message: "A required field has no mapped column",
			Action:  "Map a column to every required field before continuing",
			Code:    "MAP001",
		},
	},
	{
		pattern: "target field mapped more than once",
		msg: UserMessage{
			Message: "Two columns are mapped to the same field",
			Action:  "Map each field from at most one column",
			Code:    "MAP002",
		},
	},
	{
		pattern: "unknown target fields",
		msg: UserMessage{
			Message: "A column is mapped to a field that does not exist",
			Action:  "Choose a field from the catalog",
			Code:    "MAP003",
		},
	},
	{
		pattern: "unknown element type",
		msg: UserMessage{
			Message: "Unknown element type",
			Action:  "Choose one of the available catalogs",
			Code:    "MAP004",
		},
	},
	{
		pattern: "mapping template not found",
		msg: UserMessage{
			Message: "Mapping template not found",
			Action:  "Refresh the template list and try again",
			Code:    "MAP005",
		},
	},
	{
		pattern: "mapping template already exists",
		msg: UserMessage{
			Message: "A mapping template with this name already exists",
			Action:  "Choose a different name or update the existing template",
			Code:    "MAP006",
		},
	},

	// Validation Errors
	{
		pattern: "required field is empty",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Fill in all required fields",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use plain numbers such as 1200.50",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Use one of the allowed values for this field",
			Code:    "VAL003",
		},
	},
	{
		pattern: "not allowed",
		msg: UserMessage{
			Message: "Value contains characters that are not allowed",
			Action:  "Remove characters such as < and >",
			Code:    "VAL004",
		},
	},
	{
		pattern: "exceeds",
		msg: UserMessage{
			Message: "Value is too long",
			Action:  "Shorten the value",
			Code:    "VAL005",
		},
	},

	// Duplicate Errors
	{
		pattern: "no duplicate match",
		msg: UserMessage{
			Message: "This row has no duplicate to resolve",
			Action:  "Only rows listed as duplicates can get a strategy",
			Code:    "DUP001",
		},
	},
	{
		pattern: "invalid duplicate strategy",
		msg: UserMessage{
			Message: "Unknown duplicate strategy",
			Action:  "Use UPDATE_EXISTING, CREATE_NEW or SKIP",
			Code:    "DUP002",
		},
	},

	// Batch Errors
	{
		pattern: "batch not found",
		msg: UserMessage{
			Message: "Import batch not found",
			Action:  "Check the batch ID",
			Code:    "BATCH001",
		},
	},
	{
		pattern: "batch already exists",
		msg: UserMessage{
			Message: "An import batch with this ID already exists",
			Action:  "Start a new import",
			Code:    "BATCH002",
		},
	},
	{
		pattern: "batch state conflict",
		msg: UserMessage{
			Message: "This import batch has already been started",
			Action:  "Open the batch history to see its result",
			Code:    "BATCH003",
		},
	},

	// Execution Errors
	{
		pattern: "too many concurrent executions",
		msg: UserMessage{
			Message: "System is busy running other imports",
			Action:  "Please wait a moment and try again",
			Code:    "EXEC001",
		},
	},
	{
		pattern: "backend unavailable",
		msg: UserMessage{
			Message: "The element repository is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "EXEC002",
		},
	},
	{
		pattern: "element not found",
		msg: UserMessage{
			Message: "Element not found",
			Action:  "It may have been deleted. Refresh and try again",
			Code:    "EXEC003",
		},
	},

	// Database Errors
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Review the data for duplicate keys",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},

	// Request Errors
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "invalid argument",
		msg: UserMessage{
			Message: "A required value is missing or invalid",
			Action:  "Fill in the highlighted value and try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "REQ002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "REQ003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},

	// Request Errors. Kept last so specific patterns win.
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request body against the API documentation",
			Code:    "REQ001",
		},
	},
	{
		pattern: "invalid argument",
		msg: UserMessage{
			Message: "A required value is missing or invalid",
			Action:  "Fill in the highlighted value and try again",
			Code:    "REQ002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern, i.e. whether
// its mapped message says more than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError, or returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
