package core

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound is wrapped by LookupError when a tombo is not in the store.
	ErrItemNotFound = errors.New("item not found")

	// ErrRestorePending is returned by session operations while a saved
	// session is waiting for the user to accept or decline it.
	ErrRestorePending = errors.New("session restore pending")

	// ErrNoRestoreCandidate is returned when resolving a restore that was never offered.
	ErrNoRestoreCandidate = errors.New("no session to restore")

	// ErrParseInFlight is returned when a parse is submitted while another is outstanding.
	ErrParseInFlight = errors.New("parse already in progress")

	// ErrParseServiceClosed is returned after the parse service was closed.
	ErrParseServiceClosed = errors.New("parse service closed")

	// ErrNoSnapshot is returned by a SnapshotStore whose slot is empty.
	ErrNoSnapshot = errors.New("no snapshot saved")

	// ErrEmptyImport is returned when an import contains no item with a tombo.
	ErrEmptyImport = errors.New("empty file: no rows with nr_tombo")

	// ErrNoItems is returned when exporting a session that has nothing loaded.
	ErrNoItems = errors.New("no items loaded")
)

// ParseReason classifies an import failure.
type ParseReason string

const (
	ReasonMissingRequiredColumn ParseReason = "missing_required_column"
	ReasonMalformedRow          ParseReason = "malformed_row"
	ReasonUnreadable            ParseReason = "unreadable"
)

// ParseError is an import failure. It never leaves a partially loaded store.
type ParseError struct {
	Reason  ParseReason
	Column  string // set for ReasonMissingRequiredColumn
	Line    int    // 1-indexed source line, 0 if unknown
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch e.Reason {
	case ReasonMissingRequiredColumn:
		return fmt.Sprintf("missing required column %q", e.Column)
	case ReasonMalformedRow:
		if e.Line > 0 {
			return fmt.Sprintf("invalid csv at line %d: %s", e.Line, e.Message)
		}
		return "invalid csv: " + e.Message
	default:
		return "encoding error: " + e.Message
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LookupError reports a tombo that is not in the store.
type LookupError struct {
	ID string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("item %q: %v", e.ID, ErrItemNotFound)
}

func (e *LookupError) Unwrap() error {
	return ErrItemNotFound
}

// ActionReason classifies a rejected action.
type ActionReason string

const (
	ReasonNoTargets        ActionReason = "no_targets"
	ReasonTargetMissing    ActionReason = "target_missing"
	ReasonAlreadyProcessed ActionReason = "already_processed"
	ReasonInputCancelled   ActionReason = "input_cancelled"
	ReasonUnknownAction    ActionReason = "unknown_action"
)

// ActionError is returned when an action is rejected. No item is mutated
// when an ActionError is returned.
type ActionError struct {
	Action Action
	Reason ActionReason
	ID     string // offending tombo, if any
	Status Status // current status for ReasonAlreadyProcessed
}

func (e *ActionError) Error() string {
	switch e.Reason {
	case ReasonNoTargets:
		return fmt.Sprintf("action %s: no items selected", e.Action)
	case ReasonTargetMissing:
		return fmt.Sprintf("action %s: item %q not found", e.Action, e.ID)
	case ReasonAlreadyProcessed:
		return fmt.Sprintf("action %s: item %q already processed (status: %s)", e.Action, e.ID, e.Status)
	case ReasonInputCancelled:
		return fmt.Sprintf("action %s: new responsible not provided", e.Action)
	default:
		return fmt.Sprintf("unknown action %q", e.Action)
	}
}

func (e *ActionError) Unwrap() error {
	if e.Reason == ReasonTargetMissing {
		return ErrItemNotFound
	}
	return nil
}

// PersistenceError describes a snapshot read or write failure. It is only
// ever logged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
