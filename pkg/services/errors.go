// Package services provides the costing operations exposed to the API, worker and CLI.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/costura/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrNoCurrentFlow = errors.New("style has no current flow")

	// Violation Errors (422 Unprocessable Entity), reported with a list of violations.
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidPayload   = errors.New("invalid editor payload")
	ErrInvalidEdge      = errors.New("invalid connection")
	ErrInvalidBom       = errors.New("invalid bill of materials")
	ErrInconsistentFlow = errors.New("flow is not consistent")

	// Business Logic Conflicts (409 Conflict).
	ErrFlowNotActive   = errors.New("only active flows can become current")
	ErrSoleFlow        = persistence.ErrSoleFlow
	ErrVersionConflict = persistence.ErrVersionConflict

	// Not Found Errors (404 Not Found).
	ErrNoActiveBom = errors.New("style has no active bill of materials")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ViolationError carries every rule a flow, connection or payload broke.
type ViolationError struct {
	Op         string
	Err        error
	Violations []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, strings.Join(e.Violations, "; "))
}

func (e *ViolationError) Unwrap() error {
	return e.Err
}

// NewViolationError creates a violation error for op.
func NewViolationError(op string, err error, violations []string) *ViolationError {
	return &ViolationError{
		Op:         op,
		Err:        err,
		Violations: violations,
	}
}

// Violations returns the violation list carried by err, if any.
func Violations(err error) ([]string, bool) {
	var violationErr *ViolationError
	if errors.As(err, &violationErr) {
		return violationErr.Violations, true
	}

	return nil, false
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoCurrentFlow)
}

// IsViolationError checks if an error carries rule violations that should return HTTP 422.
func IsViolationError(err error) bool {
	_, ok := Violations(err)

	return ok
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrFlowNotActive) ||
		errors.Is(err, ErrSoleFlow) ||
		errors.Is(err, ErrVersionConflict)
}

// IsNotFoundError checks if an error reports a missing entity that should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err) || errors.Is(err, ErrNoActiveBom)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
