package entity

import (
	"context"

	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/resolve"
)

// Store is the persistence port for packages, bindings and actions.
//
// Packages and bindings share one name space per namespace: a Put of either
// kind over a name held by the other kind is a CONFLICT regardless of
// overwrite. A Put on an existing name without overwrite is a CONFLICT; with
// overwrite the entity's own parameters and annotations are replaced
// wholesale and its version is bumped. Put returns the entity as stored.
//
// PutBinding rejects a target that is a binding (INVALID_NAME), checked
// atomically with the write. A missing target is allowed; the manager checks
// existence up front. Deleting a package and reusing its name for a binding
// can still leave an older binding pointing at a binding; resolution reports
// that as INVALID_NAME.
//
// PutAction requires the owning package to exist as a literal package
// (NOT_FOUND when absent, INVALID_NAME when the name is a binding).
// DeletePackage refuses a package that still owns actions (CONFLICT).
//
// Implementations: adapters/memory, adapters/redis, store (SQLite).
type Store interface {
	resolve.Lookup

	PutPackage(ctx context.Context, p ir.Package, overwrite bool) (ir.Package, error)
	PutBinding(ctx context.Context, b ir.Binding, overwrite bool) (ir.Binding, error)
	PutAction(ctx context.Context, a ir.Action, overwrite bool) (ir.Action, error)

	DeletePackage(ctx context.Context, ref ir.EntityRef) error
	DeleteBinding(ctx context.Context, ref ir.EntityRef) error
	DeleteAction(ctx context.Context, ref ir.ActionRef) error

	// ListPackages and ListBindings return entities ordered by name.
	ListPackages(ctx context.Context, namespace string) ([]ir.Package, error)
	ListBindings(ctx context.Context, namespace string) ([]ir.Binding, error)

	// ListActions returns the actions of one package, or every action in the
	// namespace when pkg is empty, ordered by package then name.
	ListActions(ctx context.Context, namespace, pkg string) ([]ir.Action, error)
}

// ActivationStore persists activation records.
type ActivationStore interface {
	// PutActivation writes a new record; an existing ID is a CONFLICT.
	PutActivation(ctx context.Context, a ir.Activation) error

	GetActivation(ctx context.Context, namespace, id string) (ir.Activation, error)

	// ListActivations returns up to limit records, newest first by start
	// time then seq. limit <= 0 means no limit.
	ListActivations(ctx context.Context, namespace string, limit int) ([]ir.Activation, error)
}
