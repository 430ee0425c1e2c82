// Package domainerrors defines the error taxonomy shared by all services.
//
// Services return *DomainError values built with New or Wrap; handlers map
// them onto HTTP statuses with ToHTTPStatus. Store layers do not use this
// package directly — they return sentinel errors (pkg/platform/sentinel)
// which services translate into domain errors with the right code.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	// CodeInvalidInput marks malformed or out-of-range caller input.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks a structurally invalid request (bad JSON, wrong kind).
	CodeBadRequest Code = "bad_request"
	// CodeConflict marks an operation rejected by current state: bid too low,
	// raffle sold out, draw on a closed raffle, upload after completion. The
	// caller may refresh and retry.
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks a request with no resolvable caller identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks a caller acting on a resource they do not own.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks an unknown listing or session.
	CodeNotFound Code = "not_found"
	// CodeInvariantViolation marks an illegal state transition caught by a
	// domain model. Services usually translate it into CodeConflict before it
	// reaches a caller.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout marks an operation abandoned because its context expired.
	CodeTimeout Code = "timeout"
	// CodeUnavailable marks a dependency that is temporarily unreachable.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks everything else. Details are logged, never returned.
	CodeInternal Code = "internal_error"
)

// DomainError carries a classification code alongside the message and an
// optional wrapped cause.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// New builds a domain error with no underlying cause.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As inspection.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// produced outside this taxonomy.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
