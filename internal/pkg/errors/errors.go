// Package errors provides custom error types and error handling utilities.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Startup errors (fatal).
	CodeLoad    = "LOAD_ERROR"
	CodeConfig  = "CONFIG_ERROR"
	CodeStorage = "STORAGE_ERROR"

	// Per-probe errors (non-fatal, isolated to one iteration).
	CodeExecution = "EXECUTION_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// LoadError creates a query-definition load error.
func LoadError(message string, err error) *AppError {
	return Wrap(CodeLoad, message, err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, err error) *AppError {
	return Wrap(CodeConfig, message, err)
}

// StorageError creates a ledger storage error.
func StorageError(message string, err error) *AppError {
	return Wrap(CodeStorage, message, err)
}

// ExecutionError creates a query execution error.
func ExecutionError(message string, err error) *AppError {
	return Wrap(CodeExecution, message, err)
}

// hasCode checks whether err is an AppError carrying the given code.
func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsLoad checks if error is a load error.
func IsLoad(err error) bool {
	return hasCode(err, CodeLoad)
}

// IsStorage checks if error is a storage error.
func IsStorage(err error) bool {
	return hasCode(err, CodeStorage)
}

// IsExecution checks if error is an execution error.
func IsExecution(err error) bool {
	return hasCode(err, CodeExecution)
}
