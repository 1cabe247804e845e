package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrValidation        = errors.New("validation failed")
	ErrInternal          = errors.New("internal error")
	ErrDatabase          = errors.New("database error")
	ErrJobState          = errors.New("illegal job state transition")
	ErrExtractionService = errors.New("extraction service unavailable")
	ErrExtractionParse   = errors.New("extraction response malformed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ValidationErrorf returns an error classified as a caller input problem.
func ValidationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// JobStateErrorf returns an error for an illegal job transition.
func JobStateErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrJobState, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether the caller may retry the failed operation.
// Only transient extraction failures (network, timeout, rate limit) qualify;
// a parse failure will most likely repeat on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExtractionService)
}
