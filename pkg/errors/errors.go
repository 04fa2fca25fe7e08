package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so callers can compare
// against the sentinel values below with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrInvalidTransition:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrAlreadyAssigned, ErrAlreadyReleased, ErrUnitUnavailable, ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrConflict
	ErrStorage
)

// Mortuary domain codes
const (
	ErrAlreadyAssigned ErrorCode = iota + 2000
	ErrAlreadyReleased
	ErrUnitUnavailable
	ErrInvalidTransition
)

// Sentinels for errors.Is comparisons.
var (
	ErrNotFoundKind          = &AppError{Code: ErrNotFound}
	ErrAlreadyAssignedKind   = &AppError{Code: ErrAlreadyAssigned}
	ErrAlreadyReleasedKind   = &AppError{Code: ErrAlreadyReleased}
	ErrUnitUnavailableKind   = &AppError{Code: ErrUnitUnavailable}
	ErrInvalidTransitionKind = &AppError{Code: ErrInvalidTransition}
	ErrConflictKind          = &AppError{Code: ErrConflict}
	ErrStorageKind           = &AppError{Code: ErrStorage}
)

// HasCode reports whether err (or anything it wraps) is an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// Storage wraps a persistence failure that survived the retry budget.
func Storage(err error) *AppError {
	return &AppError{
		Code:    ErrStorage,
		Message: "storage failure",
		Err:     err,
	}
}

func AlreadyAssigned(deceasedID int64) *AppError {
	return &AppError{
		Code:    ErrAlreadyAssigned,
		Message: fmt.Sprintf("deceased patient %d already has an active storage assignment", deceasedID),
	}
}

func AlreadyReleased(deceasedID int64) *AppError {
	return &AppError{
		Code:    ErrAlreadyReleased,
		Message: fmt.Sprintf("storage assignment for deceased patient %d is already released", deceasedID),
	}
}

func UnitUnavailable(unitID int64, status string) *AppError {
	return &AppError{
		Code:    ErrUnitUnavailable,
		Message: fmt.Sprintf("storage unit %d is not available (status %s)", unitID, status),
	}
}

func InvalidTransition(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: message,
	}
}
