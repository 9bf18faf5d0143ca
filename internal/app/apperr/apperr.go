// Package apperr defines the application-layer error shared by every service.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotProvisioned    = "PROFILE_NOT_PROVISIONED"
	CodeAlreadyExists     = "PROFILE_ALREADY_EXISTS"
	CodeIdempotencyReuse  = "IDEMPOTENCY_KEY_REUSE"
	CodeUnknownAction     = "UNKNOWN_ACTION"
	CodeInternal          = "INTERNAL"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// Validation reports a single invalid field.
func Validation(field, problem string) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidation,
		Message: "invalid " + field,
		Details: map[string]any{field: problem},
	}
}

// ValidationFields reports several invalid fields at once.
func ValidationFields(details map[string]any) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidation,
		Message: "invalid request",
		Details: details,
	}
}

func NotFound(what string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: msg}
}

func InvalidTransition(from, to string) *Error {
	return &Error{
		Status:  http.StatusConflict,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}

func NotProvisioned() *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Code:    CodeNotProvisioned,
		Message: "No profile exists for the authenticated subject.",
	}
}
