// Package apperrors carries machine-readable reasons for errors returned by the core.
package apperrors

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Stable reason codes exposed to API callers.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeValidation     = "VALIDATION_ERROR"
	CodeDeliveryFailed = "DELIVERY_FAILED"
	CodeInternal       = "INTERNAL"
)

var (
	// ErrNotFound is the root of every lookup miss
	ErrNotFound = errors.New("not found")

	// ErrValidation is the root of every rejected input
	ErrValidation = errors.New("validation failed")

	// ErrDelivery is the root of every channel delivery failure
	ErrDelivery = errors.New("delivery failed")
)

// Error is an application error with a stable code.
// Message must not contain secrets.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is/As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes every *Error match the sentinel of its code
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrValidation:
		return e.Code == CodeValidation
	case ErrDelivery:
		return e.Code == CodeDeliveryFailed
	}
	return false
}

// NotFound builds a NOT_FOUND error for the given kind and id
func NotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s not found: %s", kind, id)}
}

// Validation builds a VALIDATION_ERROR error
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Delivery wraps a channel failure
func Delivery(channelID string, cause error) *Error {
	return &Error{Code: CodeDeliveryFailed, Message: fmt.Sprintf("delivery to channel %s failed", channelID), Cause: cause}
}

// CodeOf maps any error to its reason code
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrDelivery):
		return CodeDeliveryFailed
	}
	return CodeInternal
}

// BestEffort runs fn and logs its error without propagating it.
// Use it for side effects whose failure must not fail the primary operation.
func BestEffort(logger *zap.Logger, op string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("Best-effort operation failed",
			zap.String("operation", op),
			zap.Error(err))
	}
}
