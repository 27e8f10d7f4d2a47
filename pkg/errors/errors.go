// Package errors provides custom error types for the harborsync system.
// These errors enable programmatic error checking across the reconciliation
// pipeline: transform failures stay per-record, relation and cycle failures
// are structural, and apply failures are classified for retry.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// As is an alias for the standard library errors.As.
var As = errors.As

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// Common sentinel errors for the harborsync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrRelationNotFound indicates an apply failed because a referenced
	// related entity does not exist in the catalog yet
	ErrRelationNotFound = errors.New("related entity not found")

	// ErrCyclicDependency indicates entity relations form a cycle
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrDeletionThreshold indicates the deletion-safety guard tripped
	ErrDeletionThreshold = errors.New("deletion threshold exceeded")

	// ErrCatalogUnavailable indicates the remote catalog is temporarily unavailable
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrRateLimited indicates the API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// CyclicDependencyError indicates that ordering a set of entities failed
// because their relations form a cycle. This is a configuration problem for
// the affected kind, not a transient failure.
type CyclicDependencyError struct {
	// Cycle holds the identity keys participating in the cycle, in
	// detection order.
	Cycle []string
}

// Error implements the error interface
func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf(
		"cyclic dependency between entities [%s]; strict relation ordering cannot be satisfied - "+
			"enable create_missing_related_entities and/or delete_dependent_entities for this kind to bypass strict ordering",
		strings.Join(e.Cycle, ", "))
}

// Is implements errors.Is support
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// NewCyclicDependencyError creates a new CyclicDependencyError
func NewCyclicDependencyError(cycle []string) *CyclicDependencyError {
	return &CyclicDependencyError{Cycle: cycle}
}

// RelationValidationError indicates that one or more relation targets
// referenced by the entities of a pass exist neither in the catalog nor in
// the set being applied. Raised before any entity is applied.
type RelationValidationError struct {
	// Missing maps target blueprint identifier to the missing entity
	// identifiers referenced from it.
	Missing map[string][]string
}

// Error implements the error interface
func (e *RelationValidationError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for blueprint, ids := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s: %v", blueprint, ids))
	}
	return fmt.Sprintf("missing related entities (%s); create them first or enable create_missing_related_entities",
		strings.Join(parts, "; "))
}

// Is implements errors.Is support
func (e *RelationValidationError) Is(target error) bool {
	return target == ErrNotFound
}

// ThresholdExceededError indicates the deletion-safety guard aborted the
// deletions for a kind.
type ThresholdExceededError struct {
	Kind       string
	Candidates int
	Known      int
	Threshold  float64
}

// Error implements the error interface
func (e *ThresholdExceededError) Error() string {
	return fmt.Sprintf("refusing to delete %d of %d known entities for kind %s (threshold %.2f)",
		e.Candidates, e.Known, e.Kind, e.Threshold)
}

// Is implements errors.Is support
func (e *ThresholdExceededError) Is(target error) bool {
	return target == ErrDeletionThreshold
}

// TransformError represents a per-record failure while evaluating selector or
// mapping expressions. It never aborts the batch it occurred in.
type TransformError struct {
	Kind  string
	Field string
	Err   error
}

// Error implements the error interface
func (e *TransformError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("transform error for kind %s at field %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("transform error for kind %s: %v", e.Kind, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransformError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// APIError represents an error from the remote catalog API
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog API error during %s (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("catalog API error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrCatalogUnavailable
	}
	if e.StatusCode == 404 {
		return target == ErrNotFound
	}
	return false
}

// SyncError represents an error during a kind's reconciliation pass
type SyncError struct {
	Kind string
	Err  error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync error for kind %s: %v", e.Kind, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRelationNotFound checks if an apply failure was caused by a missing
// related entity and is therefore eligible for the deferred retry.
func IsRelationNotFound(err error) bool {
	return errors.Is(err, ErrRelationNotFound)
}

// IsCyclicDependency checks if an error is a cyclic dependency error
func IsCyclicDependency(err error) bool {
	return errors.Is(err, ErrCyclicDependency)
}

// IsDeletionThreshold checks if an error is a deletion threshold breach
func IsDeletionThreshold(err error) bool {
	return errors.Is(err, ErrDeletionThreshold)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Wrapping helpers

// Wrap wraps an error with a message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapSync wraps an error as a kind-scoped sync error
func WrapSync(kind string, err error) error {
	if err == nil {
		return nil
	}
	return &SyncError{Kind: kind, Err: err}
}

// WrapValidation wraps an error as a field validation error
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapParse wraps a parse error with format and file context
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("parse error in %s file %s: %w", format, file, err)
}
