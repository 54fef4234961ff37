// Package errors provides structured error types for starmark.
//
// Every failure on the star-count path is classified with a [Code] so that
// callers can decide, without string matching, whether the failure is worth
// surfacing to the user (credential problems, rate limiting) or only worth a
// log line (network hiccups, unexpected status codes).
//
// # Error Codes
//
//   - INVALID_*: input validation failures (bad repository identifiers, URLs)
//   - MALFORMED_ENTRY: a result entry whose identifier cannot be extracted
//   - CREDENTIAL_INVALID, RATE_LIMITED, REMOTE_STATUS: classified API responses
//   - NETWORK_ERROR: transport-level failures (DNS, timeout, reset)
//   - STORAGE_ERROR: persistent key-value store failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidRepo, "invalid repository identifier: %q", id)
//	if errors.Is(err, errors.ErrCodeInvalidRepo) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch %s", id)
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidRepo     Code = "INVALID_REPO"
	ErrCodeInvalidStatus   Code = "INVALID_STATUS"
	ErrCodeMalformedEntry  Code = "MALFORMED_ENTRY"
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Remote API errors
	ErrCodeCredentialInvalid Code = "CREDENTIAL_INVALID"
	ErrCodeRateLimited       Code = "RATE_LIMITED"
	ErrCodeRemoteStatus      Code = "REMOTE_STATUS"
	ErrCodeNetwork           Code = "NETWORK_ERROR"

	// Storage errors
	ErrCodeStorage Code = "STORAGE_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Status  int    // HTTP status code, when the error came from a response
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// WithStatus records the HTTP status code that produced e and returns e.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// StatusCode returns the HTTP status recorded on err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int       // Seconds to wait before retrying
	Reset      time.Time // When the quota resets (X-RateLimit-Reset), zero if unknown
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	switch {
	case e.RetryAfter > 0:
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	case !e.Reset.IsZero():
		return fmt.Sprintf("rate limited: quota resets at %s", e.Reset.UTC().Format(time.RFC3339))
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
