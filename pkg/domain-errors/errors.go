// Package domainerrors provides coded errors for the service layer.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing infrastructure
// facts; services translate those into coded domain errors that the transport
// layer can map onto HTTP responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and branching.
type Code string

const (
	// CodeNotFound: the requested entity, or a matching published template,
	// does not exist. Recoverable for resolution callers.
	CodeNotFound Code = "not_found"
	// CodeBadRequest: malformed request envelope (bad JSON, missing fields).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput: a value failed domain-primitive parsing (ids, enums).
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation: a structurally valid payload violates domain rules
	// (unknown question id, wrong value kind, empty answer set).
	CodeValidation Code = "validation_error"
	// CodeInvalidScope: a scope specification is malformed or empty.
	CodeInvalidScope Code = "invalid_scope"
	// CodeInvalidState: a lifecycle transition was attempted from a status
	// that does not permit it.
	CodeInvalidState Code = "invalid_state"
	// CodeImmutable: an edit was attempted on a non-draft template.
	CodeImmutable Code = "immutable"
	// CodeConflict: a uniqueness or concurrency conflict.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation: an aggregate invariant would be broken.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal: unexpected infrastructure failure. Details are logged,
	// never surfaced to clients.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. It optionally wraps an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Description returns the human-readable message without the code prefix.
func (e *Error) Description() string {
	return e.Message
}

// New creates a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the outermost code, defaulting to CodeInternal for
// uncoded errors so transport never guesses.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
