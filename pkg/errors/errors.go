package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the tagged failure returned by every operation. Code identifies
// the failure mode, Status the HTTP mapping.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches two *Error values by code so errors.Is works across clones.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrStore              = New("STORE_ERROR", http.StatusInternalServerError, "persistence failure")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidTransition     = New("INVALID_TRANSITION", http.StatusBadRequest, "illegal status transition")
	ErrInvalidInterval       = New("INVALID_INTERVAL", http.StatusBadRequest, "time_start must be before time_end")
	ErrMajorMismatch         = New("MAJOR_MISMATCH", http.StatusUnprocessableEntity, "topic major does not match council major")
	ErrTimeConflict          = New("TIME_CONFLICT", http.StatusConflict, "schedule overlaps an existing slot")
	ErrTopicAlreadyScheduled = New("TOPIC_ALREADY_SCHEDULED", http.StatusConflict, "topic already has a schedule")
	ErrGradeOutOfRange       = New("GRADE_OUT_OF_RANGE", http.StatusBadRequest, "grade out of range")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Store wraps a persistence failure verbatim.
func Store(err error, message string) *Error {
	return Wrap(err, ErrStore.Code, ErrStore.Status, message)
}

// Kind reports which taxonomy bucket an error code belongs to.
func Kind(err error) string {
	e := FromError(err)
	if e == nil {
		return ""
	}
	switch e.Code {
	case ErrValidation.Code, ErrInvalidTransition.Code, ErrInvalidInterval.Code, ErrGradeOutOfRange.Code, ErrMajorMismatch.Code:
		return "validation-error"
	case ErrForbidden.Code, ErrUnauthorized.Code:
		return "authorization-error"
	case ErrConflict.Code, ErrTimeConflict.Code, ErrTopicAlreadyScheduled.Code:
		return "conflict-error"
	case ErrNotFound.Code:
		return "not-found"
	default:
		return "store-error"
	}
}
