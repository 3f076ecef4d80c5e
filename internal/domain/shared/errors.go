// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "points", "streak"
	Op      string // Operation that failed, e.g., "Append", "Save"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Ledger domain errors
var (
	ErrDuplicateEvent      = NewDomainError("ledger", "Append", ErrAlreadyExists, "event already recorded")
	ErrInvalidEventPayload = NewDomainError("ledger", "Validate", ErrInvalidInput, "invalid event payload")
	ErrEventNotFound       = NewDomainError("ledger", "Find", ErrNotFound, "event not found")
)

// User domain errors
var (
	ErrUnknownUser   = NewDomainError("user", "Find", ErrNotFound, "unknown user")
	ErrInvalidUserID = NewDomainError("user", "Validate", ErrInvalidID, "invalid user ID")
)

// Points domain errors
var (
	ErrPointsNotFound  = NewDomainError("points", "Find", ErrNotFound, "points record not found")
	ErrInvalidLevels   = NewDomainError("points", "Validate", ErrInvalidInput, "invalid level table")
	ErrNegativeLevelID = NewDomainError("points", "Validate", ErrValueOutOfRange, "level tier must be positive")
)

// Streak domain errors
var (
	ErrStreakNotFound    = NewDomainError("streak", "Find", ErrNotFound, "streak not found")
	ErrUnknownStreakType = NewDomainError("streak", "Validate", ErrInvalidInput, "unknown streak type")
)

// Badge domain errors
var (
	ErrBadgeNotFound        = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrBadgeAlreadyOwned    = NewDomainError("badge", "Unlock", ErrAlreadyExists, "badge already unlocked")
	ErrInvalidBadgeRule     = NewDomainError("badge", "Validate", ErrInvalidInput, "invalid badge criteria rule")
	ErrUnknownBadgeMetric   = NewDomainError("badge", "Evaluate", ErrInvalidInput, "unknown criteria metric")
	ErrUnknownBadgeOperator = NewDomainError("badge", "Evaluate", ErrInvalidInput, "unknown criteria operator")
)

// Challenge domain errors
var (
	ErrChallengeNotFound      = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrChallengeExpired       = NewDomainError("challenge", "Advance", ErrExpired, "challenge window has closed")
	ErrChallengeCompleted     = NewDomainError("challenge", "Advance", ErrAlreadyProcessed, "challenge already completed")
	ErrInvalidChallengeWindow = NewDomainError("challenge", "Validate", ErrInvalidInput, "invalid challenge window")
)

// Leaderboard domain errors
var (
	ErrSnapshotNotFound = NewDomainError("leaderboard", "FindSnapshot", ErrNotFound, "snapshot not found")
	ErrInvalidScope     = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard scope")
	ErrInvalidWindow    = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard window")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateEvent checks if the error is a duplicate ledger append.
// Duplicates are informational, not failures: the event is already recorded
// and all of its derived effects are already applied.
func IsDuplicateEvent(err error) bool {
	return errors.Is(err, ErrDuplicateEvent)
}

// IsUnknownUser checks if the error refers to a user the engine has never seen.
func IsUnknownUser(err error) bool {
	return errors.Is(err, ErrUnknownUser)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsConflict checks if the error is a transient per-aggregate write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
