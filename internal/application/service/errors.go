package service

import (
	"errors"
	"fmt"

	"github.com/garyjia/school-fees/internal/domain/entity"
)

var (
	// ErrUnauthenticated is returned when no caller could be resolved
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the caller's role does not allow the operation
	ErrForbidden = errors.New("access denied")
)

// ValidationError reports malformed input
type ValidationError struct {
	Message string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

// NewValidationError creates a ValidationError with optional details
func NewValidationError(message string, details ...string) *ValidationError {
	e := &ValidationError{Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// NotFoundError reports a missing resource
type NotFoundError struct {
	Resource string
	ID       string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func notFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports an operation refused by the current state
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func conflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func requireCaller(caller *entity.Caller) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	return nil
}

func requireAdmin(caller *entity.Caller) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
