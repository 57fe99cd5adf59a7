// Package errors provides error types and handling for batch transfer operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a transfer operation error with context about the operation
// that failed. It wraps the underlying store or transport error with additional
// context for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "normalize", "expand", "download")
	Op string

	// Source is the transfer source (remote URI or local path), if applicable
	Source string

	// Dest is the transfer destination, if applicable
	Dest string

	// Err is the underlying error from the store, transport, or codec
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Source != "" && e.Dest != "" {
		return fmt.Sprintf("transfer.%s %s -> %s: %v", e.Op, e.Source, e.Dest, e.Err)
	}
	if e.Source != "" {
		return fmt.Sprintf("transfer.%s %s: %v", e.Op, e.Source, e.Err)
	}
	if e.Dest != "" {
		return fmt.Sprintf("transfer.%s -> %s: %v", e.Op, e.Dest, e.Err)
	}
	return fmt.Sprintf("transfer.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithSource adds source context to an existing error.
func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

// WithDest adds destination context to an existing error.
func (e *Error) WithDest(dest string) *Error {
	e.Dest = dest
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// Sentinel errors for the transfer engine's failure taxonomy.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidRequestShape indicates that caller input could not be mapped
	// to a transfer request (e.g., a bare location passed to an upload).
	ErrInvalidRequestShape = errors.New("transfer: invalid request shape")

	// ErrMalformedURI indicates an unparsable remote location.
	ErrMalformedURI = errors.New("transfer: malformed remote URI")

	// ErrInvalidGlobUsage indicates a glob pattern where one is not allowed
	// (write targets are never patterns).
	ErrInvalidGlobUsage = errors.New("transfer: glob pattern not allowed here")

	// ErrUnsupportedUploadFormat indicates an upload whose destination
	// extension has no encoder.
	ErrUnsupportedUploadFormat = errors.New("transfer: unsupported upload format")

	// ErrTransferFailed indicates a storage or network level failure for a
	// single request. It carries the underlying transport error.
	ErrTransferFailed = errors.New("transfer: transfer failed")

	// ErrTimeout indicates that a request exceeded its configured deadline.
	ErrTimeout = errors.New("transfer: request timed out")

	// ErrCanceled indicates a request that was skipped because its batch was
	// canceled before the request started.
	ErrCanceled = errors.New("transfer: request canceled before start")
)

// IsInvalidRequestShape checks if an error indicates malformed caller input.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsInvalidRequestShape(err error) bool {
	return errors.Is(err, ErrInvalidRequestShape)
}

// IsMalformedURI checks if an error indicates an unparsable remote location.
func IsMalformedURI(err error) bool {
	return errors.Is(err, ErrMalformedURI)
}

// IsUnsupportedUploadFormat checks if an error indicates an upload with an
// unrecognized destination extension.
func IsUnsupportedUploadFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedUploadFormat)
}

// IsTimeout checks if an error indicates a per-request deadline being exceeded.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error indicates a request skipped by batch
// cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}
