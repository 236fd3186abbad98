// Package errors provides structured error types for chocorepack.
//
// This package defines error codes that classify the failures a repack run
// can hit, so the CLI and the run report can tell a fatal download failure
// apart from a packer exit code that was only reported.
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *_NOT_FOUND / MISSING_*: Resource or metadata not found
//   - DOWNLOAD_FAILED, NETWORK_ERROR: Network-related errors
//   - CLEANUP_FAILED, PACKER_FAILED: Non-fatal conditions reported by a run
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid package reference: %s", ref)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDownload, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidVersion  Code = "INVALID_VERSION"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidArchive  Code = "ARCHIVE_INVALID"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeMissingMetadata Code = "MISSING_METADATA"

	// Network errors
	ErrCodeNetwork  Code = "NETWORK_ERROR"
	ErrCodeDownload Code = "DOWNLOAD_FAILED"
	ErrCodeTimeout  Code = "TIMEOUT"

	// Conditions a run reports without necessarily failing
	ErrCodeCleanup      Code = "CLEANUP_FAILED"
	ErrCodePackerFailed Code = "PACKER_FAILED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
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

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// Only the outermost *Error is consulted.
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

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix, followed by
// the cause when there is one.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
