// Package errors provides standardized error types and helpers for the narrative pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a chapter, character or snapshot was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyCorpus indicates a corpus source produced no bytes
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrAnalysis indicates the external analysis collaborator failed
	ErrAnalysis = errors.New("analysis failed")
)

// NotFoundError represents a lookup miss with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "character", "chapter", "snapshot")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "reference", "snapshot")
	Input   string // Offending input, if short enough to be useful
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("failed to parse %s %q: %s", e.Format, e.Input, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// LoadError reports that a corpus could not be obtained at all.
// Malformed lines inside a corpus are never a LoadError; they are skipped.
type LoadError struct {
	Source string // Path or label of the corpus
	Err    error  // Underlying cause (read failure or ErrEmptyCorpus)
}

func (e *LoadError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("failed to load corpus %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("failed to load corpus: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// AnalysisError reports a failure of the external analysis collaborator.
// It is kept apart from LoadError so callers can tell the two conditions apart.
type AnalysisError struct {
	RequestID string // Request identifier sent to the collaborator
	Attempts  int    // Attempts made before giving up
	Reason    string // Short user-facing reason ("timeout", "empty response", ...)
	Err       error  // Underlying error, if any
}

func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("analysis %s: %s", e.RequestID, e.Reason)
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AnalysisError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAnalysis, e.Err}
	}
	return []error{ErrAnalysis}
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, input, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Input:   input,
		Message: message,
	}
}

// NewLoad creates a LoadError
func NewLoad(source string, err error) *LoadError {
	return &LoadError{
		Source: source,
		Err:    err,
	}
}

// NewAnalysis creates an AnalysisError
func NewAnalysis(requestID, reason string, err error) *AnalysisError {
	return &AnalysisError{
		RequestID: requestID,
		Attempts:  1,
		Reason:    reason,
		Err:       err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
