package users

import (
	"context"
	"errors"
	"fmt"
)

// StorageError represents errors related to storage operations
type StorageError struct {
	Type      string
	Operation string
	Resource  string
	Message   string
	Cause     error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage error [%s] during %s on %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Resource, e.Message, e.Cause)
	}
	return fmt.Sprintf("storage error [%s] during %s on %s: %s",
		e.Type, e.Operation, e.Resource, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Storage error types
const (
	StorageErrorTypeConnectionFailed = "connection_failed"
	StorageErrorTypeQueryFailed      = "query_failed"
)

// NewStorageConnectionError creates an error for an unreachable or timed out store
func NewStorageConnectionError(operation, resource string, cause error) *StorageError {
	return &StorageError{
		Type:      StorageErrorTypeConnectionFailed,
		Operation: operation,
		Resource:  resource,
		Message:   "failed to connect to storage",
		Cause:     cause,
	}
}

// NewStorageQueryError creates an error for storage query failures
func NewStorageQueryError(operation, resource string, cause error) *StorageError {
	return &StorageError{
		Type:      StorageErrorTypeQueryFailed,
		Operation: operation,
		Resource:  resource,
		Message:   "storage query failed",
		Cause:     cause,
	}
}

// IsStoreUnavailable reports whether err is a connection_failed StorageError.
func IsStoreUnavailable(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr) && storageErr.Type == StorageErrorTypeConnectionFailed
}

// ValidationError represents errors in request decoding
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// classify wraps a driver error into a StorageError. isConnErr lets each
// backend add the checks its driver exposes.
func classify(operation, resource string, err error, isConnErr func(error) bool) error {
	if err == nil {
		return nil
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewStorageConnectionError(operation, resource, err)
	}
	if isConnErr != nil && isConnErr(err) {
		return NewStorageConnectionError(operation, resource, err)
	}
	return NewStorageQueryError(operation, resource, err)
}
