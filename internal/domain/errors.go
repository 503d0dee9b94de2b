package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrDatasetNotFound       = fmt.Errorf("dataset: %w", ErrNotFound)
	ErrUnsupportedFormat     = fmt.Errorf("format: %w", ErrUnsupported)
	ErrUnsupportedProjection = fmt.Errorf("projection: %w", ErrUnsupported)
	ErrUnsupportedPredicate  = fmt.Errorf("predicate: %w", ErrUnsupported)
	ErrCRSUnset              = fmt.Errorf("crs is unset, cannot transform naive geometries: %w", ErrInvalidInput)
	ErrInvalidCRS            = fmt.Errorf("crs: %w", ErrInvalidInput)
	ErrPathOutsideWorkspace  = fmt.Errorf("path outside workspace: %w", ErrInvalidInput)
	ErrUnknownAction         = fmt.Errorf("action: %w", ErrNotFound)
	ErrStorageUnavailable    = fmt.Errorf("storage: %w", ErrUnavailable)
	ErrEngineUnavailable     = fmt.Errorf("geometry engine: %w", ErrUnavailable)
)

// ReadError is returned when a dataset cannot be opened or parsed.
type ReadError struct {
	Path string // Dataset path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("error reading file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError is returned when an output dataset cannot be written.
type WriteError struct {
	Path string // Output path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("error writing file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// TransformError represents a failed coordinate transformation.
type TransformError struct {
	From CRS   // Source CRS
	To   CRS   // Target CRS
	Err  error // Underlying error
}

// Error implements the error interface.
func (e *TransformError) Error() string {
	return fmt.Sprintf("transforming from %s to %s: %v", e.From, e.To, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransformError) Unwrap() error {
	return e.Err
}

// RepairError wraps any failure of the repair pipeline with the stage it happened in.
type RepairError struct {
	Path  string // Input dataset path
	Stage string // load, validate, repair, reproject, persist
	Err   error  // Underlying error
}

// Error implements the error interface.
func (e *RepairError) Error() string {
	return fmt.Sprintf("error during processing (%s): %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *RepairError) Unwrap() error {
	return e.Err
}

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, upload)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}

// FailureKind classifies errors for callers that branch on results.
type FailureKind string

// Failure kinds.
const (
	KindRead         FailureKind = "read"
	KindWrite        FailureKind = "write"
	KindTransform    FailureKind = "transform"
	KindInvalidInput FailureKind = "invalid_input"
	KindUnsupported  FailureKind = "unsupported"
	KindNotFound     FailureKind = "not_found"
	KindUnavailable  FailureKind = "unavailable"
	KindInternal     FailureKind = "internal"
)

// ClassifyError maps an error to its failure kind.
// Typed errors win over the sentinels they may wrap.
func ClassifyError(err error) FailureKind {
	var (
		readErr      *ReadError
		writeErr     *WriteError
		transformErr *TransformError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &readErr):
		return KindRead
	case errors.As(err, &writeErr):
		return KindWrite
	case errors.As(err, &transformErr):
		return KindTransform
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
