package access

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeForbidden       Code = "forbidden"
	CodeValidation      Code = "validation"
	CodeConflict        Code = "conflict"
	CodeUnauthenticated Code = "unauthenticated"
)

// Error is the failure taxonomy shared by the store and the handlers.
// NotFound deliberately covers both "absent" and "present but invisible".
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same Code, so callers can write
// errors.Is(err, access.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden       = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation      = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrConflict        = &Error{Code: CodeConflict, Message: "conflict"}
	ErrUnauthenticated = &Error{Code: CodeUnauthenticated, Message: "authentication credentials were not provided"}
)

func NotFound(what string) error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func Forbidden(reason string) error {
	return &Error{Code: CodeForbidden, Message: reason}
}

func Conflict(reason string) error {
	return &Error{Code: CodeConflict, Message: reason}
}

// Invalid reports a single-field validation failure.
func Invalid(field, msg string) error {
	return &Error{Code: CodeValidation, Message: msg, Fields: map[string]string{field: msg}}
}

// Validation collects per-field messages; Err returns nil when empty.
type Validation map[string]string

func (v Validation) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

func (v Validation) Err() error {
	if len(v) == 0 {
		return nil
	}
	msg := "invalid input"
	if len(v) == 1 {
		for _, m := range v {
			msg = m
		}
	}
	return &Error{Code: CodeValidation, Message: msg, Fields: v}
}

// CodeOf extracts the taxonomy code, or "" for errors outside it.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
