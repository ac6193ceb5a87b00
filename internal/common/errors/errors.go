// Package errors provides standardized error handling for the review
// pipeline. Every workflow failure carries a stable code and a retryable
// flag; callers branch on the code, never on message text.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Workflow state machine errors.
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"
	ErrCodeAlreadyClaimed ErrorCode = "ALREADY_CLAIMED"
	ErrCodePermission     ErrorCode = "PERMISSION_DENIED"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// Storage and infrastructure errors.
	ErrCodeTransient                ErrorCode = "TRANSIENT"
	ErrCodeIdentifierCollision      ErrorCode = "IDENTIFIER_COLLISION"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"

	// Input errors.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Collaborator errors.
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidStateError reports an operation attempted from a disallowed
// status. A caller bug; never retried.
func NewInvalidStateError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   "Operation not allowed in current application state",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyClaimedError reports a lost claim race. The caller should re-poll
// the queue rather than retry the same claim.
func NewAlreadyClaimedError(applicationID string, level string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyClaimed,
		Message:   "Queue entry already claimed by another officer",
		Details:   fmt.Sprintf("applicationId: %s, level: %s", applicationID, level),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPermissionError reports an officer/jurisdiction mismatch.
func NewPermissionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePermission,
		Message:   "Officer not permitted to act at this level or jurisdiction",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports a missing application or queue entry.
func NewNotFoundError(resource, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransientError reports a storage timeout or conflict; safe to retry with
// backoff.
func NewTransientError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransient,
		Message:   "Transient storage error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIdentifierCollisionError reports a retryable allocator race. The engine
// retries allocation internally up to a bounded attempt count before
// surfacing a TransientError.
func NewIdentifierCollisionError(prefix string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIdentifierCollision,
		Message:   "Identifier allocation conflict",
		Details:   fmt.Sprintf("prefix: %s, error: %s", prefix, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError reports invalid application payload data.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Application data validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(templateKind string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("template: %s, error: %s", templateKind, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf extracts the ErrorCode from err, or "" when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is-style helpers used by callers branching on the taxonomy.

func IsInvalidState(err error) bool   { return CodeOf(err) == ErrCodeInvalidState }
func IsAlreadyClaimed(err error) bool { return CodeOf(err) == ErrCodeAlreadyClaimed }
func IsPermission(err error) bool     { return CodeOf(err) == ErrCodePermission }
func IsNotFound(err error) bool       { return CodeOf(err) == ErrCodeNotFound }
func IsTransient(err error) bool      { return CodeOf(err) == ErrCodeTransient }
func IsValidationFailed(err error) bool {
	return CodeOf(err) == ErrCodeValidationFailed
}
func IsIdentifierCollision(err error) bool {
	return CodeOf(err) == ErrCodeIdentifierCollision
}

// IsRetryable reports whether err may be retried with backoff.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeNotificationSendFailed:
		return 3
	case ErrCodeTransient,
		ErrCodeIdentifierCollision:
		return 2
	default:
		return 0 // business errors: no retry
	}
}
