// Package storeerr defines the error taxonomy of the node store.
//
// Failures surfaced by the storage engines are wrapped, never swallowed;
// callers branch on the code via the Is* predicates rather than on error
// strings.
package storeerr

import (
	"errors"
	"fmt"
)

const (
	CodeNotFound         = "not_found"
	CodeFieldNotFound    = "field_not_found"
	CodeSupertagNotFound = "supertag_not_found"
	CodeConflict         = "conflict"
	CodeNotInitialized   = "not_initialized"
	CodeEngine           = "engine"
)

type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return "store error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

func NotFound(kind, key string) *Error {
	return &Error{Code: CodeNotFound, Err: fmt.Errorf("%s %q not found", kind, key)}
}

func FieldNotFound(systemID string) *Error {
	return &Error{Code: CodeFieldNotFound, Err: fmt.Errorf("field %q not found", systemID)}
}

func SupertagNotFound(systemID string) *Error {
	return &Error{Code: CodeSupertagNotFound, Err: fmt.Errorf("supertag %q not found", systemID)}
}

func Conflict(kind, key string) *Error {
	return &Error{Code: CodeConflict, Err: fmt.Errorf("%s %q already exists", kind, key)}
}

func NotInitialized() *Error {
	return &Error{Code: CodeNotInitialized, Err: errors.New("store used before Init")}
}

// Engine wraps an opaque failure from the underlying storage client.
// The cause stays reachable through errors.Unwrap.
func Engine(err error) *Error {
	return &Error{Code: CodeEngine, Err: err}
}

func code(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound reports whether err carries any of the not-found codes.
func IsNotFound(err error) bool {
	switch code(err) {
	case CodeNotFound, CodeFieldNotFound, CodeSupertagNotFound:
		return true
	default:
		return false
	}
}

func IsConflict(err error) bool { return code(err) == CodeConflict }

func IsNotInitialized(err error) bool { return code(err) == CodeNotInitialized }
