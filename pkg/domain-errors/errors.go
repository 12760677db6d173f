// Package domainerrors carries stable error codes across service boundaries so
// transport layers can map failures to client-facing shapes without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error category.
type Code string

const (
	// Pipeline taxonomy.
	CodeAuthMissing      Code = "auth_missing"
	CodeAuthInvalid      Code = "auth_invalid"
	CodeAuthInactive     Code = "auth_inactive"
	CodePermissionDenied Code = "permission_denied"
	CodeRoleDenied       Code = "role_denied"
	CodeRateLimited      Code = "rate_limited"
	CodeValidation       Code = "validation_error"
	CodeConflict         Code = "conflict"
	CodeReference        Code = "invalid_reference"
	CodeMissingField     Code = "missing_field"
	CodeInternal         Code = "internal_error"

	// Supporting codes.
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidID          Code = "invalid_id"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeNotImplemented     Code = "not_implemented"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded domain error. Two errors are equal under errors.Is when
// both code and message match.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost domain code in the chain, or "" if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if de, ok := err.(*Error); ok && de.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// MessageOf returns the outermost domain message, or "" if none.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
