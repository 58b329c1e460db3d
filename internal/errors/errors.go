// Package errors provides structured error handling for recondor operations.
// It defines error codes, error types, and utilities for creating and
// inspecting errors carried between the recon modules and their callers.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Scan errors. Resolution and port-spec failures are fatal: they
	// abort a scan before any probe is issued. Everything a probe can
	// produce (closed, filtered, socket error) is outcome data, not an
	// error, and never carries one of these codes.
	CodeResolution      ErrorCode = "RESOLUTION"
	CodeInvalidPortSpec ErrorCode = "INVALID_PORT_SPEC"
	CodeScanFailed      ErrorCode = "SCAN_FAILED"

	// DNS enumeration errors.
	CodeDNSLookup ErrorCode = "DNS_LOOKUP"

	// Storage errors.
	CodeStorageConnection ErrorCode = "STORAGE_CONNECTION"
	CodeStorageQuery      ErrorCode = "STORAGE_QUERY"

	// Report errors.
	CodeReportWrite ErrorCode = "REPORT_WRITE"
)

// ScanError represents an error that occurred during a recon operation.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{Code: code, Message: message}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Cause: err}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Target: target, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{Code: code, Message: message, Cause: err}
}

// StorageError represents scan-history storage errors.
type StorageError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// WrapStorageError wraps an existing error as a storage error.
func WrapStorageError(code ErrorCode, message, operation string, err error) *StorageError {
	return &StorageError{Code: code, Message: message, Operation: operation, Cause: err}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ScanError:
		return e.Code
	case *ConfigError:
		return e.Code
	case *StorageError:
		return e.Code
	}
	return CodeUnknown
}

// IsFatal determines if an error should abort a recon run before any
// probing starts, as opposed to per-probe conditions that are recorded
// and skipped.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeResolution, CodeInvalidPortSpec, CodeConfiguration, CodeValidation:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrResolution creates the fatal error for an unresolvable target.
func ErrResolution(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeResolution, "failed to resolve target", target, err)
}

// ErrInvalidPortSpec creates the fatal error for a malformed port
// specification, naming the offending token.
func ErrInvalidPortSpec(token string) *ScanError {
	return NewScanError(CodeInvalidPortSpec, fmt.Sprintf("invalid port token %q", token))
}

// ErrScanCanceled creates the error returned when a scan is abandoned
// through context cancellation.
func ErrScanCanceled(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeCanceled, "scan canceled", target, err)
}

// ErrDNSLookup creates an error for DNS enumeration failures.
func ErrDNSLookup(domain string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeDNSLookup, "DNS lookup failed", domain, err)
}
