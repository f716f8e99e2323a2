package core

// error_messages.go maps errors to user-facing messages with support codes.
//
// # Error Codes Reference
//
// When users encounter errors, they can quote the code to whoever supports
// the audit so the cause can be found in the logs quickly.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Missing column: The file has no nr_tombo (or Descrica07) column
//	IMP002 - Invalid CSV: Unbalanced quotes or a malformed row
//	IMP003 - Encoding error: The file could not be decoded
//	IMP004 - No file: No file was selected
//	IMP005 - Empty file: No row has a tombo
//	IMP006 - File too large: The upload exceeds IMPORT_MAX_FILE_SIZE
//	IMP007 - Parse in progress: Another file is still being read
//
// # Lookup Errors (LKP001-LKP099)
//
//	LKP001 - Item not found: No item with this tombo in the loaded file
//
// # Action Errors (ACT001-ACT099)
//
//	ACT001 - No items selected
//	ACT002 - Target missing: A selected tombo is not in the loaded file
//	ACT003 - Already processed: The item already has a final status
//	ACT004 - Input cancelled: The new responsible was not provided
//	ACT005 - Unknown action
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Restore pending: A saved session is waiting for a decision
//	SES002 - Nothing to restore
//	SES003 - No items loaded
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//	REQ003 - Rate limited
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check the logs for the technical error
//
// # Matching
//
// Typed errors from this package are matched first with errors.As and
// errors.Is. Anything else falls through to the pattern table, matched
// case-insensitively with strings.Contains; the first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgMissingColumn = UserMessage{
		Message: "Required column is missing from the file",
		Action:  "Check that the header has nr_tombo, Descrica07 and nome",
		Code:    "IMP001",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Check for unbalanced quotes and save the file again as CSV",
		Code:    "IMP002",
	}
	msgEncoding = UserMessage{
		Message: "File could not be read",
		Action:  "Save the file as UTF-8 or pick the right encoding",
		Code:    "IMP003",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to import",
		Code:    "IMP004",
	}
	msgEmptyFile = UserMessage{
		Message: "The file has no items",
		Action:  "Import a CSV with at least one row with nr_tombo",
		Code:    "IMP005",
	}
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum size",
		Action:  "Split the file into smaller files",
		Code:    "IMP006",
	}
	msgParseBusy = UserMessage{
		Message: "Another file is still being read",
		Action:  "Please wait for the current import to finish",
		Code:    "IMP007",
	}
	msgNotFound = UserMessage{
		Message: "Item not found",
		Action:  "Check the tombo number and try again",
		Code:    "LKP001",
	}
	msgNoTargets = UserMessage{
		Message: "No items selected",
		Action:  "Select at least one item",
		Code:    "ACT001",
	}
	msgTargetMissing = UserMessage{
		Message: "A selected item is not in the loaded file",
		Action:  "Refresh the list and select again",
		Code:    "ACT002",
	}
	msgAlreadyProcessed = UserMessage{
		Message: "Item was already processed",
		Action:  "Only pending items can be changed",
		Code:    "ACT003",
	}
	msgInputCancelled = UserMessage{
		Message: "New responsible was not provided",
		Action:  "Enter the name of the new responsible to request a transfer",
		Code:    "ACT004",
	}
	msgUnknownAction = UserMessage{
		Message: "Unknown action",
		Action:  "Use found, not_found, transfer or dispose",
		Code:    "ACT005",
	}
	msgRestorePending = UserMessage{
		Message: "A saved session was found",
		Action:  "Restore or discard it before continuing",
		Code:    "SES001",
	}
	msgNoRestore = UserMessage{
		Message: "There is no saved session to restore",
		Action:  "Import a file to start a new audit",
		Code:    "SES002",
	}
	msgNoItems = UserMessage{
		Message: "No items loaded",
		Action:  "Import a file first",
		Code:    "SES003",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages
// for errors that did not come from this package's typed errors.
var errorPatterns = []errorPattern{
	// Import
	{pattern: "missing required column", msg: msgMissingColumn},
	{pattern: "invalid csv", msg: msgInvalidCSV},
	{pattern: "encoding error", msg: msgEncoding},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "file too large", msg: msgTooLarge},
	{pattern: "request body too large", msg: msgTooLarge},
	{pattern: "parse already in progress", msg: msgParseBusy},

	// Requests
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "REQ003",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		switch pe.Reason {
		case ReasonMissingRequiredColumn:
			return msgMissingColumn, true
		case ReasonMalformedRow:
			return msgInvalidCSV, true
		default:
			return msgEncoding, true
		}
	}

	var ae *ActionError
	if errors.As(err, &ae) {
		switch ae.Reason {
		case ReasonNoTargets:
			return msgNoTargets, true
		case ReasonTargetMissing:
			return msgTargetMissing, true
		case ReasonAlreadyProcessed:
			return msgAlreadyProcessed, true
		case ReasonInputCancelled:
			return msgInputCancelled, true
		default:
			return msgUnknownAction, true
		}
	}

	switch {
	case errors.Is(err, ErrItemNotFound):
		return msgNotFound, true
	case errors.Is(err, ErrRestorePending):
		return msgRestorePending, true
	case errors.Is(err, ErrNoRestoreCandidate):
		return msgNoRestore, true
	case errors.Is(err, ErrNoItems):
		return msgNoItems, true
	case errors.Is(err, ErrEmptyImport):
		return msgEmptyFile, true
	case errors.Is(err, ErrParseInFlight):
		return msgParseBusy, true
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
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
