package entity

import (
	"errors"
	"fmt"

	"github.com/roach88/nimbus/internal/ir"
)

// Errors shared by Store implementations so every backend reports the same
// codes and messages.

// ErrExists reports a create on a name that is already taken by the same kind.
func ErrExists(kind, name string) error {
	return ir.NewConflictError(kind, name, "already exists")
}

// ErrNameTaken reports a package/binding name held by the other kind.
func ErrNameTaken(kind, name, holder string) error {
	return ir.NewConflictError(kind, name, fmt.Sprintf("name is in use by a %s", holder))
}

// ErrPackageNotEmpty reports a delete of a package that still owns actions.
func ErrPackageNotEmpty(name string, actions int) error {
	return ir.NewConflictError(ir.KindPackage, name, fmt.Sprintf("package still contains %d action(s)", actions))
}

// ErrBindingToBinding reports a binding whose target is itself a binding.
func ErrBindingToBinding(name, target string) error {
	return ir.NewInvalidNameError(ir.KindBinding, name, fmt.Sprintf("target %s is a binding, not a package", target))
}

// ErrActionInBinding reports an action created under a binding name.
func ErrActionInBinding(name string) error {
	return ir.NewInvalidNameError(ir.KindAction, name, "actions cannot be created in a binding")
}

// ErrStaleWrite marks a CONFLICT caused by a concurrent writer rather than
// by existing state. Such writes may succeed when retried.
var ErrStaleWrite = errors.New("watched key changed")

// ErrConcurrentUpdate reports a write that lost against a concurrent one.
func ErrConcurrentUpdate(kind, name string) error {
	return &ir.EntityError{
		Code:    ir.ErrCodeConflict,
		Kind:    kind,
		Name:    name,
		Message: "concurrent update, retry",
		Err:     ErrStaleWrite,
	}
}

// IsRetryable reports whether err is a write that lost a race and may be
// retried as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleWrite)
}
