package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/nimbus/internal/ir"
)

// fakeLookup is a map-backed Lookup that, unlike the real stores, does not
// enforce a shared package/binding name space.
type fakeLookup struct {
	packages  map[ir.EntityRef]ir.Package
	bindings  map[ir.EntityRef]ir.Binding
	actions   map[ir.ActionRef]ir.Action
	failWith  error
	snapshots int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		packages: make(map[ir.EntityRef]ir.Package),
		bindings: make(map[ir.EntityRef]ir.Binding),
		actions:  make(map[ir.ActionRef]ir.Action),
	}
}

func (f *fakeLookup) addPackage(ns, name string, params ir.ParameterSet) {
	f.packages[ir.EntityRef{Namespace: ns, Name: name}] = ir.Package{Namespace: ns, Name: name, Parameters: params}
}

func (f *fakeLookup) addBinding(ns, name string, target ir.EntityRef, params ir.ParameterSet) {
	f.bindings[ir.EntityRef{Namespace: ns, Name: name}] = ir.Binding{Namespace: ns, Name: name, Target: target, Parameters: params}
}

func (f *fakeLookup) addAction(ns, pkg, name string, params ir.ParameterSet) {
	ref := ir.ActionRef{Namespace: ns, Package: pkg, Name: name}
	f.actions[ref] = ir.Action{Namespace: ns, Package: pkg, Name: name, Exec: ir.Exec{Kind: "echo"}, Parameters: params}
}

func (f *fakeLookup) LookupPackage(_ context.Context, ref ir.EntityRef) (ir.Package, error) {
	if f.failWith != nil {
		return ir.Package{}, f.failWith
	}
	p, ok := f.packages[ref]
	if !ok {
		return ir.Package{}, ir.NewNotFoundError(ir.KindPackage, ref.String())
	}
	return p, nil
}

func (f *fakeLookup) LookupBinding(_ context.Context, ref ir.EntityRef) (ir.Binding, error) {
	if f.failWith != nil {
		return ir.Binding{}, f.failWith
	}
	b, ok := f.bindings[ref]
	if !ok {
		return ir.Binding{}, ir.NewNotFoundError(ir.KindBinding, ref.String())
	}
	return b, nil
}

func (f *fakeLookup) LookupAction(_ context.Context, ref ir.ActionRef) (ir.Action, error) {
	a, ok := f.actions[ref]
	if !ok {
		return ir.Action{}, ir.NewNotFoundError(ir.KindAction, ref.String())
	}
	return a, nil
}

// snapshotLookup counts snapshots taken.
type snapshotLookup struct {
	*fakeLookup
}

func (s snapshotLookup) Snapshot(_ context.Context, fn func(Lookup) error) error {
	s.snapshots++
	return fn(s.fakeLookup)
}

type observation struct {
	kind    string
	outcome string
	elapsed time.Duration
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveResolution(kind, outcome string, elapsed time.Duration) {
	o.seen = append(o.seen, observation{kind: kind, outcome: outcome, elapsed: elapsed})
}

var errBackend = errors.New("backend unavailable")
