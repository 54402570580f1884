package model

import (
	"fmt"

	"github.com/Laisky/errors/v2"
)

// ErrorCode identifies the kind of failure a caller sees.
type ErrorCode string

const (
	// ErrCodeValidation means bad input. No store was touched.
	ErrCodeValidation ErrorCode = "VALIDATION"
	// ErrCodeStorage means a blob store write, verify or read failed.
	ErrCodeStorage ErrorCode = "STORAGE"
	// ErrCodeMetadata means the metadata store failed. Any blob written
	// by the same call has already been removed.
	ErrCodeMetadata ErrorCode = "METADATA"
	// ErrCodeNotFound covers both missing and not-owned files.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeCorruptRecord means the descriptor existed but its blob
	// reference was unusable. The descriptor has been purged.
	ErrCodeCorruptRecord ErrorCode = "CORRUPT_RECORD"
)

// Error is the only error shape the file service returns.
// Cause is kept for logs and never rendered to clients.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	cause     error
}

// Error returns the message, with the cause appended for logs.
func (e *Error) Error() string {
	if e == nil {
		return "file error: <nil>"
	}

	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("file error: %s", e.Code)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}

	return msg
}

// Unwrap exposes the underlying store error.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError constructs a typed error.
func NewError(code ErrorCode, message string, retryable bool, cause error) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable, cause: cause}
}

// ValidationError rejects input.
func ValidationError(message string) *Error {
	return NewError(ErrCodeValidation, message, false, nil)
}

// StorageError reports a blob store failure.
func StorageError(message string, cause error) *Error {
	return NewError(ErrCodeStorage, message, true, cause)
}

// MetadataError reports a metadata store failure.
func MetadataError(message string, cause error) *Error {
	return NewError(ErrCodeMetadata, message, true, cause)
}

// NotFoundError hides whether the file is missing or owned by someone else.
func NotFoundError() *Error {
	return NewError(ErrCodeNotFound, "file not found", false, nil)
}

// CorruptRecordError reports a purged descriptor.
func CorruptRecordError(cause error) *Error {
	return NewError(ErrCodeCorruptRecord, "file data is missing or invalid", false, cause)
}

// AsError extracts a typed error from the chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}

	return nil, false
}

// IsCode reports whether the chain holds an error with code.
func IsCode(err error, code ErrorCode) bool {
	typed, ok := AsError(err)
	return ok && typed.Code == code
}
