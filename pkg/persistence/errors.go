// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	ErrStyleNotFound       = errors.New("style not found")
	ErrColorNotFound       = errors.New("color not found")
	ErrSizeNotFound        = errors.New("size not found")
	ErrMaterialNotFound    = errors.New("material not found")
	ErrProcessNotFound     = errors.New("process not found")
	ErrFlowNotFound        = errors.New("flow not found")
	ErrCurrentFlowNotFound = errors.New("current flow not found")
	ErrNodeNotFound        = errors.New("flow node not found")
	ErrVariantNotFound     = errors.New("variant not found")
	ErrCalculationNotFound = errors.New("calculation not found")

	// ErrSoleFlow indicates an attempt to delete the only flow of a style.
	ErrSoleFlow = errors.New("cannot delete the only flow of a style")

	// ErrVersionConflict indicates a concurrent writer took the same version number.
	ErrVersionConflict = errors.New("version already taken")
)

// EntityError wraps entity-related errors with additional context.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Record", "Delete")
	Entity string // Entity kind (e.g., "flow", "variant")
	ID     string // Entity ID if applicable
	Err    error  // Underlying error
}

func (e *EntityError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntityError creates a new entity error with context.
func NewEntityError(op, entity, id string, err error) *EntityError {
	return &EntityError{
		Op:     op,
		Entity: entity,
		ID:     id,
		Err:    err,
	}
}

// IsNotFound checks if an error reports any missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStyleNotFound) ||
		errors.Is(err, ErrColorNotFound) ||
		errors.Is(err, ErrSizeNotFound) ||
		errors.Is(err, ErrMaterialNotFound) ||
		errors.Is(err, ErrProcessNotFound) ||
		errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrCurrentFlowNotFound) ||
		errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrVariantNotFound) ||
		errors.Is(err, ErrCalculationNotFound)
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsCurrentFlowNotFound checks if an error indicates a style has no current flow.
func IsCurrentFlowNotFound(err error) bool {
	return errors.Is(err, ErrCurrentFlowNotFound)
}

// IsVariantNotFound checks if an error indicates a variant was not found.
func IsVariantNotFound(err error) bool {
	return errors.Is(err, ErrVariantNotFound)
}

// IsCalculationNotFound checks if an error indicates a calculation was not found.
func IsCalculationNotFound(err error) bool {
	return errors.Is(err, ErrCalculationNotFound)
}

// IsSoleFlow checks if an error indicates the only flow of a style was targeted for deletion.
func IsSoleFlow(err error) bool {
	return errors.Is(err, ErrSoleFlow)
}
