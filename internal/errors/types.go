// Package errors provides the structured error types used across folio.
//
// Every failure that crosses a package boundary is a *FolioError carrying an
// ErrorType (which subsystem failed) and a Code (what exactly failed). The
// HTTP layer never shows these to clients; they exist so that logs can tell
// "the database is down" apart from "the database holds corrupt data".
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeStore      ErrorType = "store"
	ErrorTypeProjection ErrorType = "projection"
	ErrorTypeMigration  ErrorType = "migration"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeStoreConnect    = "ERR_STORE_CONNECT"
	ErrCodeStoreQuery      = "ERR_STORE_QUERY"
	ErrCodeStoreWrite      = "ERR_STORE_WRITE"
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
	ErrCodeNotPublished    = "ERR_NOT_PUBLISHED"
	ErrCodeMigrationFailed = "ERR_MIGRATION_FAILED"
	ErrCodeMigrationSource = "ERR_MIGRATION_SOURCE"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeRenderFailed    = "ERR_RENDER_FAILED"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// FolioError is a structured error type with context.
type FolioError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
}

// Error implements the error interface.
func (e *FolioError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *FolioError) Unwrap() error {
	return e.Cause
}

// Is reports a match when type and code are equal.
func (e *FolioError) Is(target error) bool {
	var t *FolioError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *FolioError) WithContext(key string, value interface{}) *FolioError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *FolioError) WithComponent(component string) *FolioError {
	e.Component = component

	return e
}

// NewStoreError creates an error for a failure reaching or querying the store.
func NewStoreError(code, message string, cause error) *FolioError {
	return &FolioError{
		Type:    ErrorTypeStore,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewProjectionError creates an error for a stored row that cannot be
// projected into a view. These indicate corrupt data, not a transient fault.
func NewProjectionError(code, message string, cause error) *FolioError {
	return &FolioError{
		Type:    ErrorTypeProjection,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewMigrationError creates a schema migration error.
func NewMigrationError(code, message string, cause error) *FolioError {
	return &FolioError{
		Type:    ErrorTypeMigration,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *FolioError {
	return &FolioError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *FolioError {
	return &FolioError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *FolioError {
	return &FolioError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the ErrorType of the first FolioError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Type
	}

	return ErrorTypeInternal
}

// IsStoreError checks if an error is store-related.
func IsStoreError(err error) bool {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Type == ErrorTypeStore
	}

	return false
}

// IsProjectionError checks if an error came from projecting a stored row.
func IsProjectionError(err error) bool {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Type == ErrorTypeProjection
	}

	return false
}

// IsMigrationError checks if an error came from applying migrations.
func IsMigrationError(err error) bool {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Type == ErrorTypeMigration
	}

	return false
}

// ErrorHandler provides centralized error logging.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err under a message that depends on its kind.
func (h *ErrorHandler) Handle(ctx context.Context, err error, fields ...interface{}) {
	if err == nil || h.logger == nil {
		return
	}

	var fe *FolioError
	if !errors.As(err, &fe) {
		h.logger.Error(ctx, err, "Unhandled error occurred", fields...)
		return
	}

	fields = append(fields, "type", fe.Type, "code", fe.Code)
	for k, v := range fe.Context {
		fields = append(fields, k, v)
	}

	switch fe.Type {
	case ErrorTypeStore:
		h.logger.Error(ctx, err, "Store error occurred", fields...)
	case ErrorTypeProjection:
		h.logger.Error(ctx, err, "Data integrity error", fields...)
	case ErrorTypeMigration:
		h.logger.Error(ctx, err, "Migration error occurred", fields...)
	case ErrorTypeValidation, ErrorTypeConfig:
		h.logger.Warn(ctx, err, "Validation error occurred", fields...)
	default:
		h.logger.Error(ctx, err, "Error occurred", fields...)
	}
}
