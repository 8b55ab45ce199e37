package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds shared by the cart core. Every AppError built by the helpers
// below wraps exactly one of them so callers can branch with errors.Is.
var (
	// ErrCatalog marks references to unknown products or toppings.
	ErrCatalog = errors.New("catalog error")
	// ErrValidation marks rejected selections and edits.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks persistence failures. They are logged, never rendered.
	ErrStorage = errors.New("storage error")
	// ErrIntegrity marks a checkout attempt on an incomplete cart.
	ErrIntegrity = errors.New("integrity error")
)

// Error codes rendered in API error bodies.
const (
	CodeCatalog    = "CATALOG_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeIntegrity  = "INTEGRITY_ERROR"
	CodeBadRequest = "BAD_REQUEST"
	CodeInternal   = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// CatalogError reports an unknown product or topping identifier.
func CatalogError(format string, args ...any) *AppError {
	msg := fmt.Sprintf(format, args...)
	return &AppError{
		Code:       CodeCatalog,
		Message:    msg,
		HTTPStatus: http.StatusNotFound,
		Err:        fmt.Errorf("%s: %w", msg, ErrCatalog),
	}
}

// ValidationError reports a rejected selection or edit. Details, when set,
// identify the offending line item and rule.
func ValidationError(details any, format string, args ...any) *AppError {
	msg := fmt.Sprintf(format, args...)
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        fmt.Errorf("%s: %w", msg, ErrValidation),
		Details:    details,
	}
}

// StorageError wraps a persistence failure.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorage, err))
}
