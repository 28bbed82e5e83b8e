package errors

import (
	"fmt"
)

// ErrorCode represents internal error codes for startup volume checking
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Configuration errors
	ErrCodeInvalidArgument ErrorCode = 1000
	ErrCodeInvalidLocation ErrorCode = 1001

	// Volume check errors
	ErrCodeInternal             ErrorCode = 2000
	ErrCodeUnavailable          ErrorCode = 2001
	ErrCodeCheckTimeout         ErrorCode = 2002
	ErrCodeVolumeCheckFailed    ErrorCode = 2003
	ErrCodeTooManyFailedVolumes ErrorCode = 2004
	ErrCodeNoUsableVolumes      ErrorCode = 2005
)

// StorageError represents a structured error with code and context
type StorageError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError
func NewStorageError(code ErrorCode, message string, cause error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *StorageError) WithDetail(key string, value interface{}) *StorageError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func InvalidArgument(message string, cause error) *StorageError {
	return NewStorageError(ErrCodeInvalidArgument, message, cause)
}

func InvalidLocation(location, reason string) *StorageError {
	return NewStorageError(ErrCodeInvalidLocation, fmt.Sprintf("invalid storage location %q: %s", location, reason), nil).
		WithDetail("location", location).
		WithDetail("reason", reason)
}

func InternalError(message string, cause error) *StorageError {
	return NewStorageError(ErrCodeInternal, message, cause)
}

func Unavailable(message string, cause error) *StorageError {
	return NewStorageError(ErrCodeUnavailable, message, cause)
}

func CheckTimeout(location string, waited string) *StorageError {
	return NewStorageError(ErrCodeCheckTimeout, fmt.Sprintf("disk check of %s did not complete within %s", location, waited), nil).
		WithDetail("location", location).
		WithDetail("waited", waited)
}

func VolumeCheckFailed(location string, cause error) *StorageError {
	return NewStorageError(ErrCodeVolumeCheckFailed, fmt.Sprintf("disk check of %s failed", location), cause).
		WithDetail("location", location)
}

func TooManyFailedVolumes(failed, tolerated int) *StorageError {
	return NewStorageError(ErrCodeTooManyFailedVolumes,
		fmt.Sprintf("too many failed volumes: %d. The configuration allows for a maximum of %d failed volumes", failed, tolerated), nil).
		WithDetail("failed", failed).
		WithDetail("tolerated", tolerated)
}

func NoUsableVolumes(locations []string) *StorageError {
	return NewStorageError(ErrCodeNoUsableVolumes,
		fmt.Sprintf("all configured storage locations are invalid: %v", locations), nil).
		WithDetail("locations", locations)
}

// IsStorageError checks if an error is a StorageError
func IsStorageError(err error) bool {
	_, ok := err.(*StorageError)
	return ok
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if se, ok := err.(*StorageError); ok {
		return se.Code
	}
	return ErrCodeInternal
}
