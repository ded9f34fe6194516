package errors

import (
	stderrors "errors"
	"strings"
)

// Error is the domain error type carried from the authenticator and stores
// up to the dispatcher.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Internal message for logs
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// EnvelopeCode renders the value written to the envelope's error field.
func (e *Error) EnvelopeCode() string {
	if !e.Code.CarriesDetail() || e.Cause == nil {
		return string(e.Code)
	}
	detail := strings.TrimSpace(e.Cause.Error())
	if detail == "" {
		return string(e.Code)
	}
	return string(e.Code) + " " + detail
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code carried by err. Uncoded errors are internal
// failures; storage layers always wrap theirs with CodeDB.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// EnvelopeCode renders any error into the envelope's error field.
func EnvelopeCode(err error) string {
	if err == nil {
		return string(CodeNone)
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.EnvelopeCode()
	}
	return string(CodeInternal)
}
