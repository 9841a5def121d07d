package resolve

import (
	"context"

	"github.com/roach88/nimbus/internal/ir"
)

// Lookup is the read capability the resolver needs from a store.
//
// Each method returns an *ir.EntityError with code NOT_FOUND when the entity
// is absent. LookupPackage returns literal packages only and LookupBinding
// returns bindings only.
type Lookup interface {
	LookupPackage(ctx context.Context, ref ir.EntityRef) (ir.Package, error)
	LookupBinding(ctx context.Context, ref ir.EntityRef) (ir.Binding, error)
	LookupAction(ctx context.Context, ref ir.ActionRef) (ir.Action, error)
}

// Snapshotter is implemented by stores that can serve several lookups from
// one consistent state. fn must not retain the Lookup after it returns.
type Snapshotter interface {
	Snapshot(ctx context.Context, fn func(Lookup) error) error
}

// WithSnapshot runs fn against a snapshot of l when l supports it, and
// against l directly otherwise.
func WithSnapshot(ctx context.Context, l Lookup, fn func(Lookup) error) error {
	if s, ok := l.(Snapshotter); ok {
		return s.Snapshot(ctx, fn)
	}
	return fn(l)
}
