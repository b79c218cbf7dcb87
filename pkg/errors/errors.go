package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Position-specific errors

var (
	// ErrPositionNotFound indicates no position matched the id or filter
	ErrPositionNotFound = errors.New("position not found")

	// ErrInvalidPositionID indicates a malformed position identifier
	ErrInvalidPositionID = errors.New("invalid position id")

	// ErrPositionConflict indicates an open position already exists for the coin and side
	ErrPositionConflict = errors.New("position already open")

	// ErrZeroEntryPrice indicates PnL math was attempted against a zero entry price
	ErrZeroEntryPrice = errors.New("entry price is zero")
)

// Market data errors

var (
	// ErrPriceUnavailable indicates the price or candle feed failed or returned garbage
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrRateLimitExceeded indicates API rate limit exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Store errors

var (
	// ErrStoreFailure indicates the underlying persistence layer failed
	ErrStoreFailure = errors.New("store failure")

	// ErrInvalidTableName indicates a table name outside the allowed charset
	ErrInvalidTableName = errors.New("invalid table name")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
