// Package errors defines the structured error type used across dockhand.
//
// Codes follow the failure taxonomy of the monitoring core: connectivity
// failures end the current activity, timeouts degrade it, input errors are
// reported inline and the shell carries on.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig       = "CONFIG"
	ErrConnectivity = "CONNECTIVITY"
	ErrTimeout      = "TIMEOUT"
	ErrInput        = "INPUT"
	ErrAttach       = "ATTACH"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// It renders as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrConnectivity.
// Most wrapped errors in dockhand come from the engine transport.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrConnectivity,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Inputf builds an ErrInput error with a formatted message and no suggestion.
func Inputf(format string, args ...interface{}) *Error {
	return &Error{
		Code:    ErrInput,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Short renders the message and cause on one line, for inline reporting
// inside the shell where the multi-line block would be too loud.
func (e *Error) Short() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var dhErr *Error
	if errors.As(err, &dhErr) {
		return dhErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost structured error in the chain,
// or "" when there is none.
func CodeOf(err error) string {
	var dhErr *Error
	if errors.As(err, &dhErr) {
		return dhErr.Code
	}
	return ""
}
