package resolve

import (
	"context"
	"fmt"

	"github.com/roach88/nimbus/internal/ir"
)

// Kind is the classification of an invocation target.
type Kind int

const (
	// KindTopLevel is an action with no package segment.
	KindTopLevel Kind = iota + 1
	// KindLiteral is an action reached through its own package.
	KindLiteral
	// KindBound is an action reached through a binding.
	KindBound
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindTopLevel:
		return "top_level"
	case KindLiteral:
		return "literal"
	case KindBound:
		return "bound"
	default:
		return "unknown"
	}
}

// Classification is the tagged result of classifying a target's qualifying
// segment. Package is set for Literal and Bound; Binding only for Bound.
type Classification struct {
	Kind    Kind
	Package *ir.Package
	Binding *ir.Binding
}

// Classify decides whether t's qualifying segment names a literal package,
// a binding, or nothing (a top-level action).
//
// A segment that names both a package and a binding is rejected with
// INVALID_NAME, as is a binding whose target is another binding. A segment
// that names neither, or a binding whose target package is gone, is
// NOT_FOUND.
func Classify(ctx context.Context, l Lookup, t ir.Target) (Classification, error) {
	if t.Package == "" {
		return Classification{Kind: KindTopLevel}, nil
	}
	ref := ir.EntityRef{Namespace: t.Namespace, Name: t.Package}

	pkg, pkgFound, err := lookupPackage(ctx, l, ref)
	if err != nil {
		return Classification{}, err
	}
	binding, bindingFound, err := lookupBinding(ctx, l, ref)
	if err != nil {
		return Classification{}, err
	}

	switch {
	case pkgFound && bindingFound:
		return Classification{}, ir.NewInvalidNameError(ir.KindTarget, t.String(),
			fmt.Sprintf("%s names both a package and a binding", ref))
	case pkgFound:
		return Classification{Kind: KindLiteral, Package: &pkg}, nil
	case bindingFound:
		target, err := bindingTarget(ctx, l, binding)
		if err != nil {
			return Classification{}, err
		}
		return Classification{Kind: KindBound, Package: &target, Binding: &binding}, nil
	default:
		return Classification{}, ir.NewNotFoundError(ir.KindPackage, ref.String())
	}
}

func bindingTarget(ctx context.Context, l Lookup, b ir.Binding) (ir.Package, error) {
	pkg, found, err := lookupPackage(ctx, l, b.Target)
	if err != nil {
		return ir.Package{}, err
	}
	if found {
		return pkg, nil
	}
	_, isBinding, err := lookupBinding(ctx, l, b.Target)
	if err != nil {
		return ir.Package{}, err
	}
	if isBinding {
		return ir.Package{}, ir.NewInvalidNameError(ir.KindBinding, b.Ref().String(),
			fmt.Sprintf("target %s is a binding, not a package", b.Target))
	}
	return ir.Package{}, ir.NewNotFoundError(ir.KindPackage, b.Target.String())
}

func lookupPackage(ctx context.Context, l Lookup, ref ir.EntityRef) (ir.Package, bool, error) {
	pkg, err := l.LookupPackage(ctx, ref)
	switch {
	case err == nil:
		return pkg, true, nil
	case ir.IsNotFound(err):
		return ir.Package{}, false, nil
	default:
		return ir.Package{}, false, fmt.Errorf("lookup package %s: %w", ref, err)
	}
}

func lookupBinding(ctx context.Context, l Lookup, ref ir.EntityRef) (ir.Binding, bool, error) {
	b, err := l.LookupBinding(ctx, ref)
	switch {
	case err == nil:
		return b, true, nil
	case ir.IsNotFound(err):
		return ir.Binding{}, false, nil
	default:
		return ir.Binding{}, false, fmt.Errorf("lookup binding %s: %w", ref, err)
	}
}
