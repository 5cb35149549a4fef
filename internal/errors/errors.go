package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the code search engine
type ErrorType string

const (
	// Query errors
	ErrorTypePattern      ErrorType = "pattern"
	ErrorTypeInvalidQuery ErrorType = "invalid_query"
	ErrorTypeCancelled    ErrorType = "cancelled"
	ErrorTypeSearch       ErrorType = "search"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeFileTooLarge ErrorType = "file_too_large"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// Sentinel errors usable with errors.Is
var (
	ErrEmptyPattern    = errors.New("search pattern is empty")
	ErrNoMatchingFiles = errors.New("file path filter matches no files")
	ErrCancelled       = errors.New("operation cancelled")
	ErrFileTooLarge    = errors.New("file exceeds the 2 GiB addressable limit")
)

// PatternError reports a pattern that cannot be compiled. It is always
// returned before any scanning starts.
type PatternError struct {
	Type       ErrorType
	Pattern    string
	Underlying error
	Timestamp  time.Time
}

// NewPatternError creates a new pattern error
func NewPatternError(pattern string, err error) *PatternError {
	return &PatternError{
		Type:       ErrorTypePattern,
		Pattern:    pattern,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Underlying)
}

// Unwrap returns the underlying error
func (e *PatternError) Unwrap() error {
	return e.Underlying
}

// InvalidQueryError reports a query that is well formed but cannot be run.
type InvalidQueryError struct {
	Type       ErrorType
	Field      string
	Underlying error
	Timestamp  time.Time
}

// NewInvalidQueryError creates a new invalid query error
func NewInvalidQueryError(field string, err error) *InvalidQueryError {
	return &InvalidQueryError{
		Type:       ErrorTypeInvalidQuery,
		Field:      field,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query (%s): %v", e.Field, e.Underlying)
}

// Unwrap returns the underlying error
func (e *InvalidQueryError) Unwrap() error {
	return e.Underlying
}

// CancelledError is reported when a caller asks for the final status of a
// query that was cancelled or superseded.
type CancelledError struct {
	Type      ErrorType
	Operation string
	Results   int // results gathered before cancellation
	Timestamp time.Time
}

// NewCancelledError creates a new cancelled error
func NewCancelledError(op string, results int) *CancelledError {
	return &CancelledError{
		Type:      ErrorTypeCancelled,
		Operation: op,
		Results:   results,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled after %d results", e.Operation, e.Results)
}

// Unwrap lets errors.Is match ErrCancelled
func (e *CancelledError) Unwrap() error {
	return ErrCancelled
}

// PieceError records a content piece that failed to scan. Piece errors are
// isolated: the piece is skipped and sibling scans continue.
type PieceError struct {
	Type       ErrorType
	Path       string
	Offset     int64
	Underlying error
	Timestamp  time.Time
}

// NewPieceError creates a new piece error
func NewPieceError(path string, offset int64, err error) *PieceError {
	return &PieceError{
		Type:       ErrorTypeSearch,
		Path:       path,
		Offset:     offset,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *PieceError) Error() string {
	return fmt.Sprintf("scan of %s at offset %d failed: %v", e.Path, e.Offset, e.Underlying)
}

// Unwrap returns the underlying error
func (e *PieceError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileNotFound
	switch {
	case errors.Is(err, ErrFileTooLarge):
		errorType = ErrorTypeFileTooLarge
	case isPermissionError(err):
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// isPermissionError checks if the error is a permission error
func isPermissionError(err error) bool {
	errStr := err.Error()
	return errStr == "permission denied" || errStr == "access denied"
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// IsPatternError reports whether err is or wraps a PatternError
func IsPatternError(err error) bool {
	var pe *PatternError
	return errors.As(err, &pe)
}

// IsInvalidQuery reports whether err is or wraps an InvalidQueryError
func IsInvalidQuery(err error) bool {
	var qe *InvalidQueryError
	return errors.As(err, &qe)
}

// TypeOf returns the ErrorType of the first typed error in err's chain, or
// "" for untyped errors.
func TypeOf(err error) ErrorType {
	var (
		patternErr *PatternError
		queryErr   *InvalidQueryError
		cancelErr  *CancelledError
		pieceErr   *PieceError
		fileErr    *FileError
		configErr  *ConfigError
	)
	switch {
	case errors.As(err, &patternErr):
		return patternErr.Type
	case errors.As(err, &queryErr):
		return queryErr.Type
	case errors.As(err, &cancelErr):
		return cancelErr.Type
	case errors.As(err, &pieceErr):
		return pieceErr.Type
	case errors.As(err, &fileErr):
		return fileErr.Type
	case errors.As(err, &configErr):
		return ErrorTypeConfig
	}
	return ""
}
