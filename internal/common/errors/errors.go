// Package errors provides standardized error handling for the order
// conversation flow.
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

// Conversational errors are resolved inside the dialog layer with a
// re-prompt; infrastructure errors propagate to the outer driver.
const (
	ErrCodeMissingTranscription  ErrorCode = "MISSING_TRANSCRIPTION"
	ErrCodeUnrecognizedOrder     ErrorCode = "UNRECOGNIZED_ORDER"
	ErrCodeMissingRequiredField  ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrCodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"

	ErrCodeStoreUnavailable      ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeCatalogUnavailable    ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeExtractionTimeout     ErrorCode = "EXTRACTION_TIMEOUT"
	ErrCodeExtractionFailed      ErrorCode = "EXTRACTION_FAILED"
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

// IsCode reports whether err is a *StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsConversational reports whether err is resolved within the dialog
// layer (re-prompt) rather than surfaced to the driver.
func IsConversational(err error) bool {
	var se *StandardError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case ErrCodeMissingTranscription, ErrCodeUnrecognizedOrder,
		ErrCodeMissingRequiredField, ErrCodeSessionNotFound,
		ErrCodeInvalidTransition:
		return true
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewMissingTranscriptionError flags an empty or absent utterance.
func NewMissingTranscriptionError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingTranscription,
		Message:   "Empty or absent utterance for this turn",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnrecognizedOrderError flags an utterance the parser matched no
// products in. A normal negative outcome, answered with a re-prompt.
func NewUnrecognizedOrderError(utterance string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnrecognizedOrder,
		Message:   "No catalog products recognized in utterance",
		Details:   fmt.Sprintf("utterance: %s", utterance),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingRequiredFieldError flags an absent phone, name or address
// where the current state requires one.
func NewMissingRequiredFieldError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingRequiredField,
		Message:   "Required customer field absent from utterance",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError flags a supplied chat id with no matching
// non-terminal session.
func NewSessionNotFoundError(chatID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "No active conversation for chat id",
		Details:   fmt.Sprintf("chatId: %s", chatID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError flags a mutation attempt on a terminal
// session.
func NewInvalidTransitionError(sessionID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Session is in a terminal state and cannot change",
		Details:   fmt.Sprintf("sessionId: %s, status: %s", sessionID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError wraps a session store failure. Retryable; no
// partial mutation is committed when it is raised.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Session store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogUnavailableError wraps a catalog/synonym provider failure.
func NewCatalogUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogUnavailable,
		Message:   "Product catalog unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionTimeoutError flags a bounded external extraction call
// that ran out of time. Treated identically to "no transcription".
func NewExtractionTimeoutError(service string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionTimeout,
		Message:   "External extraction timed out",
		Details:   fmt.Sprintf("service: %s", service),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionFailedError flags a malformed or schema-invalid response
// from an external extraction service. Fails closed.
func NewExtractionFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "External extraction produced an invalid result",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
