// Package apperror defines the domain error vocabulary shared by every layer.
//
// Services return these errors; only the HTTP layer translates them into
// status codes (see handler.writeError). Callers test for a category with
// errors.Is against the sentinels below.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// AppError pairs a sentinel category with a message that is safe to show to
// API clients. Field, when set, names the request field at fault.
type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound also covers rows owned by another user: callers never learn
// whether someone else's ID exists.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports that a unique value is already taken.
// field names the offending input so clients can highlight it.
func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Forbidden is for an authenticated caller acting outside its rights.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated is returned when a request carries no verified identity.
// The message is deliberately generic: callers must not learn whether the
// token was missing, malformed, expired or rejected by the identity provider.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "valid authentication required",
	}
}
