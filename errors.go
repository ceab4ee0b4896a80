// errors.go: structured, coded errors for tiercache operations
//
// Every failure kind in the cache's external interface is represented as a
// go-errors.Error with a stable code, enough context to debug without
// reproducing, and a retryable flag so callers and the change-feed consumer
// can tell a transient backend hiccup from a permanent misconfiguration.
package tiercache

import (
	goerrors "errors"
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes for tiercache operations.
const (
	// Configuration errors (1xxx)
	ErrCodeInvalidConfig    errors.ErrorCode = "TIERCACHE_INVALID_CONFIG"
	ErrCodeInvalidSlotCount errors.ErrorCode = "TIERCACHE_INVALID_SLOT_COUNT"

	// Operation errors (2xxx)
	ErrCodeEmptyKey errors.ErrorCode = "TIERCACHE_EMPTY_KEY"
	ErrCodeClosed   errors.ErrorCode = "TIERCACHE_CLOSED"

	// Internal errors (6xxx)
	ErrCodeInternalError  errors.ErrorCode = "TIERCACHE_INTERNAL_ERROR"
	ErrCodePanicRecovered errors.ErrorCode = "TIERCACHE_PANIC_RECOVERED"
)

// Common error messages.
const (
	msgInvalidConfig    = "invalid cache configuration"
	msgInvalidSlotCount = "invalid slot count: must be a positive power of two"
	msgEmptyKey         = "key cannot be empty"
	msgClosed           = "cache is closed"
	msgInternalError    = "internal tiercache error"
	msgPanicRecovered   = "panic recovered in cache operation"
)

// =============================================================================
// CONFIGURATION ERRORS
// =============================================================================

// NewErrInvalidConfig creates an error for a config that failed validation
// (either Config.Validate or a sibling component's own construction-time
// checks, e.g. HotConfig's required fields).
func NewErrInvalidConfig(reason string) error {
	return errors.NewWithField(ErrCodeInvalidConfig, msgInvalidConfig, "reason", reason)
}

// NewErrInvalidSlotCount creates an error for a non-power-of-two slot count.
func NewErrInvalidSlotCount(count int) error {
	return errors.NewWithContext(ErrCodeInvalidSlotCount, msgInvalidSlotCount, map[string]interface{}{
		"provided_count": count,
	})
}

// =============================================================================
// OPERATION ERRORS
// =============================================================================

// NewErrEmptyKey creates an error when an operation is called with an empty key.
func NewErrEmptyKey(operation string) error {
	return errors.NewWithField(ErrCodeEmptyKey, msgEmptyKey, "operation", operation)
}

// NewErrClosed creates an error for an operation attempted after Close.
func NewErrClosed(operation string) error {
	return errors.NewWithField(ErrCodeClosed, msgClosed, "operation", operation)
}

// =============================================================================
// INTERNAL ERRORS
// =============================================================================

// NewErrInternal creates a generic internal error.
func NewErrInternal(operation string, cause error) error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeInternalError, msgInternalError).
			WithContext("operation", operation).
			WithSeverity("warning")
	}
	return errors.NewWithField(ErrCodeInternalError, msgInternalError, "operation", operation).
		WithSeverity("warning")
}

// NewErrPanicRecovered creates an error when a panic is recovered from a
// change listener.
func NewErrPanicRecovered(operation string, panicValue interface{}) error {
	return errors.NewWithContext(ErrCodePanicRecovered, msgPanicRecovered, map[string]interface{}{
		"operation":   operation,
		"panic_value": fmt.Sprintf("%v", panicValue),
	}).WithSeverity("critical")
}

// =============================================================================
// ERROR CHECKING HELPERS
// =============================================================================

// IsEmptyKey checks if err is an empty-key error.
func IsEmptyKey(err error) bool {
	return errors.HasCode(err, ErrCodeEmptyKey)
}

// IsClosed checks if err indicates the cache was already closed.
func IsClosed(err error) bool {
	return errors.HasCode(err, ErrCodeClosed)
}

// IsConfigError checks if err is a configuration error (1xxx code family).
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		code := coder.ErrorCode()
		return code == ErrCodeInvalidConfig || code == ErrCodeInvalidSlotCount
	}
	return false
}

// IsRetryable checks if err can be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the error code from err, or "" if err carries none.
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// GetErrorContext extracts the structured context from err, or nil.
func GetErrorContext(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	var tcErr *errors.Error
	if goerrors.As(err, &tcErr) {
		return tcErr.Context
	}
	return nil
}
