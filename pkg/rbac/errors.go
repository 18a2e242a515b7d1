package rbac

import (
	"errors"
	"fmt"
)

// RBACErrorType represents the type of RBAC error
type RBACErrorType string

const (
	ErrorTypeInsufficientPrivileges RBACErrorType = "insufficient_privileges"
	ErrorTypeInvalidRole            RBACErrorType = "invalid_role"
	ErrorTypeInvalidResource        RBACErrorType = "invalid_resource"
	ErrorTypeInvalidLevel           RBACErrorType = "invalid_level"
	ErrorTypeClinicScope            RBACErrorType = "clinic_scope"
	ErrorTypeComplianceViolation    RBACErrorType = "compliance_violation"
)

// RBACError represents an RBAC-specific error with detailed context
type RBACError struct {
	Type          RBACErrorType `json:"type"`
	Code          string        `json:"code"`
	Message       string        `json:"message"`
	UserID        string        `json:"user_id,omitempty"`
	Resource      string        `json:"resource,omitempty"`
	RequiredLevel string        `json:"required_level,omitempty"`
	Cause         error         `json:"-"`
}

// Error implements the error interface
func (e *RBACError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying cause of the error
func (e *RBACError) Unwrap() error {
	return e.Cause
}

// Is matches RBAC errors by type and code so callers can compare against the predefined values
func (e *RBACError) Is(target error) bool {
	var other *RBACError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type && e.Code == other.Code
}

// NewRBACError creates a new RBAC error
func NewRBACError(errorType RBACErrorType, code, message string) *RBACError {
	return &RBACError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// WithContext returns a copy of the error carrying user and resource context
func (e *RBACError) WithContext(userID string, resource ResourceType, required PermissionLevel) *RBACError {
	clone := *e
	clone.UserID = userID
	clone.Resource = resource.String()
	clone.RequiredLevel = required.String()
	return &clone
}

// Predefined RBAC errors
var (
	ErrInsufficientPrivileges = NewRBACError(
		ErrorTypeInsufficientPrivileges,
		ErrorCodeInsufficientPrivileges,
		"User does not have sufficient privileges to perform this action",
	)

	ErrClinicScope = NewRBACError(
		ErrorTypeClinicScope,
		ErrorCodeClinicScope,
		"User is not assigned to the requested clinic",
	)

	ErrComplianceViolation = NewRBACError(
		ErrorTypeComplianceViolation,
		ErrorCodeComplianceViolation,
		"Operation is not permitted under HIPAA handling rules",
	)
)

// GetRBACError extracts an RBAC error from a generic error
func GetRBACError(err error) (*RBACError, bool) {
	var rbacErr *RBACError
	ok := errors.As(err, &rbacErr)
	return rbacErr, ok
}
