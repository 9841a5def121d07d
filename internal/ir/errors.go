package ir

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrorCode categorizes entity errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a package, binding, action or activation is absent.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidName indicates a target or entity name cannot be parsed or
	// classified, or that a qualifying segment collides.
	ErrCodeInvalidName ErrorCode = "INVALID_NAME"

	// ErrCodeConflict indicates a write lost against an existing or concurrent entity.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeInvalidArgument indicates a malformed parameter set or entity body.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Entity kinds used in error messages.
const (
	KindPackage    = "package"
	KindBinding    = "binding"
	KindAction     = "action"
	KindActivation = "activation"
	KindTarget     = "target"
)

// EntityError is returned by stores, the resolver and the entity manager.
// Callers branch on Code through the Is* helpers.
type EntityError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Kind is the entity kind involved (package, binding, action, ...).
	Kind string

	// Name is the fully qualified name or target as given.
	Name string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *EntityError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Name != "" {
		return fmt.Sprintf("%s: %s %q: %s", e.Code, e.Kind, e.Name, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *EntityError) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(kind, name string) *EntityError {
	return &EntityError{
		Code:    ErrCodeNotFound,
		Kind:    kind,
		Name:    name,
		Message: "does not exist",
	}
}

// NewInvalidNameError reports a name that cannot be parsed or classified.
func NewInvalidNameError(kind, name, reason string) *EntityError {
	return &EntityError{
		Code:    ErrCodeInvalidName,
		Kind:    kind,
		Name:    name,
		Message: reason,
	}
}

// NewConflictError reports a write that collides with existing state.
func NewConflictError(kind, name, reason string) *EntityError {
	return &EntityError{
		Code:    ErrCodeConflict,
		Kind:    kind,
		Name:    name,
		Message: reason,
	}
}

// NewInvalidArgumentError wraps a validation failure.
func NewInvalidArgumentError(kind, name string, err error) *EntityError {
	return &EntityError{
		Code:    ErrCodeInvalidArgument,
		Kind:    kind,
		Name:    name,
		Message: "invalid argument",
		Err:     err,
	}
}

// CodeOf returns the EntityError code in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ee *EntityError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND entity error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsInvalidName reports whether err is an INVALID_NAME entity error.
func IsInvalidName(err error) bool { return CodeOf(err) == ErrCodeInvalidName }

// IsConflict reports whether err is a CONFLICT entity error.
func IsConflict(err error) bool { return CodeOf(err) == ErrCodeConflict }

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT entity error.
func IsInvalidArgument(err error) bool { return CodeOf(err) == ErrCodeInvalidArgument }
