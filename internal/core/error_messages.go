package core

// error_messages.go maps technical errors to user-facing messages with codes
// support staff can look up.
//
// # Catalog Errors (CAT001-CAT099)
//
//	CAT001 - Connection refused: unable to reach the destination database
//	CAT002 - Login failed: the database rejected the credentials
//	CAT003 - Table not found: destination schema/table does not exist
//	CAT004 - Metadata unavailable: column or constraint metadata could not be read
//	CAT005 - Permission denied on the destination table
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Unsupported format: file extension is not csv, tsv, xlsx or xlsm
//	SRC002 - File too large
//	SRC003 - Sheet not found in workbook
//	SRC004 - Empty sheet: no header or no data rows
//	SRC005 - Unreadable file: the workbook or CSV could not be parsed
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - No columns mapped: no spreadsheet column matched the destination
//	MAP002 - Invalid column mapping: a given mapping names an unknown column
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Error rate exceeded: too many rows failed validation
//
// # Duplicate Filter Errors (DUP001-DUP099)
//
//	DUP001 - Key columns missing: unique key columns are not in the mapped data
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Cancelled
//	RUN002 - Busy: too many runs in progress
//	RUN003 - Timed out
//
// # Default Error (ERR000)
//
// Patterns are matched case-insensitively with strings.Contains, first match
// wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Catalog
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the destination database",
			Action:  "Check the server address and that the database is running",
			Code:    "CAT001",
		},
	},
	{
		pattern: "login failed",
		msg: UserMessage{
			Message: "The database rejected the login",
			Action:  "Verify the user name and password in DATABASE_URL",
			Code:    "CAT002",
		},
	},
	{
		pattern: "password authentication failed",
		msg: UserMessage{
			Message: "The database rejected the login",
			Action:  "Verify the user name and password in DATABASE_URL",
			Code:    "CAT002",
		},
	},
	{
		pattern: "table not found",
		msg: UserMessage{
			Message: "Destination table not found",
			Action:  "Verify the schema and table name",
			Code:    "CAT003",
		},
	},
	{
		pattern: "fetch columns",
		msg: UserMessage{
			Message: "Could not read the destination table's columns",
			Action:  "Check that the table exists and the user can read its metadata",
			Code:    "CAT004",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Permission denied on the destination table",
			Action:  "Ask a database administrator for SELECT and INSERT rights",
			Code:    "CAT005",
		},
	},

	// =========================================================================
	// Source
	// =========================================================================
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "Unsupported file format",
			Action:  "Save the file as .xlsx, .xlsm, .csv or .tsv",
			Code:    "SRC001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size",
			Action:  "Split the file into smaller workbooks",
			Code:    "SRC002",
		},
	},
	{
		pattern: "sheet not found",
		msg: UserMessage{
			Message: "Sheet not found in workbook",
			Action:  "List the sheets and pick one of them",
			Code:    "SRC003",
		},
	},
	{
		pattern: "empty sheet",
		msg: UserMessage{
			Message: "The sheet has no data",
			Action:  "Make sure the first row holds column headers followed by data rows",
			Code:    "SRC004",
		},
	},
	{
		pattern: "read sheet",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Open and re-save the file, then try again",
			Code:    "SRC005",
		},
	},

	// =========================================================================
	// Mapping / validation / dedup
	// =========================================================================
	{
		pattern: "no columns mapped",
		msg: UserMessage{
			Message: "No spreadsheet column matched the destination table",
			Action:  "Rename the headers to match the destination columns",
			Code:    "MAP001",
		},
	},
	{
		pattern: "invalid column mapping",
		msg: UserMessage{
			Message: "A requested column mapping does not fit the sheet or the table",
			Action:  "Check the source and destination names in the mapping",
			Code:    "MAP002",
		},
	},
	{
		pattern: "error rate",
		msg: UserMessage{
			Message: "Too many rows failed validation",
			Action:  "Review the validation report and fix the flagged cells",
			Code:    "VAL001",
		},
	},
	{
		pattern: "missing key columns",
		msg: UserMessage{
			Message: "Unique key columns are missing from the mapped data",
			Action:  "Add the key columns to the spreadsheet so duplicates can be detected",
			Code:    "DUP001",
		},
	},

	// =========================================================================
	// Run lifecycle
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Please try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "too many runs",
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The run timed out",
			Action:  "Try a smaller file or raise PIPELINE_TIMEOUT",
			Code:    "RUN003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The run timed out",
			Action:  "Try a smaller file or raise PIPELINE_TIMEOUT",
			Code:    "RUN003",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
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

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a specific pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
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

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
