package resolve

import "github.com/roach88/nimbus/internal/ir"

// Resolution is the outcome of resolving one invocation target. It is
// computed once per invocation and handed to execution unchanged.
type Resolution struct {
	// Target is the parsed target as given by the caller.
	Target ir.Target

	// Kind is how the qualifying segment was classified.
	Kind Kind

	// Action is the action that will run. For bound targets it lives in
	// the binding's target package.
	Action ir.Action

	// Package is the literal package the action belongs to; nil for
	// top-level actions.
	Package *ir.Package

	// Binding is the binding the target went through; nil unless Kind is
	// KindBound.
	Binding *ir.Binding

	// Parameters are the effective parameters after merging every level.
	Parameters ir.ParameterSet
}

// ReachedViaBinding reports whether the target traversed a binding.
func (r *Resolution) ReachedViaBinding() bool {
	return r.Kind == KindBound && r.Binding != nil
}

// Provenance returns the binding's (namespace, name) when the target
// traversed a binding.
func (r *Resolution) Provenance() (ir.EntityRef, bool) {
	if !r.ReachedViaBinding() {
		return ir.EntityRef{}, false
	}
	return r.Binding.Ref(), true
}

// Path is the fully qualified name of the executed action.
func (r *Resolution) Path() string {
	return r.Action.Ref().String()
}

// Annotations returns the activation annotations derived from the
// resolution: path, kind, and binding only when reached via a binding.
// The binding key is absent, not empty, for unbound targets.
func (r *Resolution) Annotations() ir.ParameterSet {
	ps := ir.ParameterSet{
		ir.P(ir.AnnotationPath, ir.String(r.Path())),
		ir.P(ir.AnnotationKind, ir.String(r.Action.Exec.Kind)),
	}
	if ref, ok := r.Provenance(); ok {
		ps = append(ps, ir.P(ir.AnnotationBinding, ir.String(ref.String())))
	}
	return ps
}

// Digest is the content hash of what the target resolved to.
func (r *Resolution) Digest() (string, error) {
	binding := ""
	if ref, ok := r.Provenance(); ok {
		binding = ref.String()
	}
	return ir.ResolutionDigest(r.Path(), binding, r.Parameters)
}
