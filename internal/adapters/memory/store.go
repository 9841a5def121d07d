package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/resolve"
)

// Store implements entity.Store and entity.ActivationStore in memory.
// Safe for concurrent use. Entities are copied on write and on read so
// callers never share parameter slices with the store.
type Store struct {
	mu          sync.RWMutex
	packages    map[ir.EntityRef]ir.Package
	bindings    map[ir.EntityRef]ir.Binding
	actions     map[ir.ActionRef]ir.Action
	activations map[activationKey]ir.Activation
}

type activationKey struct {
	namespace string
	id        string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		packages:    make(map[ir.EntityRef]ir.Package),
		bindings:    make(map[ir.EntityRef]ir.Binding),
		actions:     make(map[ir.ActionRef]ir.Action),
		activations: make(map[activationKey]ir.Activation),
	}
}

var (
	_ entity.Store           = (*Store)(nil)
	_ entity.ActivationStore = (*Store)(nil)
	_ resolve.Snapshotter    = (*Store)(nil)
)

// LookupPackage returns a literal package.
func (s *Store) LookupPackage(ctx context.Context, ref ir.EntityRef) (ir.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.LookupPackage(ctx, ref)
}

// LookupBinding returns a binding.
func (s *Store) LookupBinding(ctx context.Context, ref ir.EntityRef) (ir.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.LookupBinding(ctx, ref)
}

// LookupAction returns an action.
func (s *Store) LookupAction(ctx context.Context, ref ir.ActionRef) (ir.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.LookupAction(ctx, ref)
}

// Snapshot holds the read lock while fn runs, so all of fn's lookups see
// the same state.
func (s *Store) Snapshot(_ context.Context, fn func(resolve.Lookup) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(view{s})
}

// view reads the maps without locking; the caller holds s.mu.
type view struct {
	s *Store
}

func (v view) LookupPackage(_ context.Context, ref ir.EntityRef) (ir.Package, error) {
	p, ok := v.s.packages[ref]
	if !ok {
		return ir.Package{}, ir.NewNotFoundError(ir.KindPackage, ref.String())
	}
	return clonePackage(p), nil
}

func (v view) LookupBinding(_ context.Context, ref ir.EntityRef) (ir.Binding, error) {
	b, ok := v.s.bindings[ref]
	if !ok {
		return ir.Binding{}, ir.NewNotFoundError(ir.KindBinding, ref.String())
	}
	return cloneBinding(b), nil
}

func (v view) LookupAction(_ context.Context, ref ir.ActionRef) (ir.Action, error) {
	a, ok := v.s.actions[ref]
	if !ok {
		return ir.Action{}, ir.NewNotFoundError(ir.KindAction, ref.String())
	}
	return cloneAction(a), nil
}

// PutPackage creates or overwrites a package.
func (s *Store) PutPackage(_ context.Context, p ir.Package, overwrite bool) (ir.Package, error) {
	ref := p.Ref()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bindings[ref]; ok {
		return ir.Package{}, entity.ErrNameTaken(ir.KindPackage, ref.String(), ir.KindBinding)
	}
	p = clonePackage(p)
	p.Version = ir.InitialEntityVersion
	if old, ok := s.packages[ref]; ok {
		if !overwrite {
			return ir.Package{}, entity.ErrExists(ir.KindPackage, ref.String())
		}
		p.Version = ir.NextVersion(old.Version)
	}
	s.packages[ref] = p
	return clonePackage(p), nil
}

// PutBinding creates or overwrites a binding. Its target must not be a
// binding.
func (s *Store) PutBinding(_ context.Context, b ir.Binding, overwrite bool) (ir.Binding, error) {
	ref := b.Ref()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.packages[ref]; ok {
		return ir.Binding{}, entity.ErrNameTaken(ir.KindBinding, ref.String(), ir.KindPackage)
	}
	b = cloneBinding(b)
	b.Version = ir.InitialEntityVersion
	if old, ok := s.bindings[ref]; ok {
		if !overwrite {
			return ir.Binding{}, entity.ErrExists(ir.KindBinding, ref.String())
		}
		b.Version = ir.NextVersion(old.Version)
	}
	if _, ok := s.bindings[b.Target]; ok {
		return ir.Binding{}, entity.ErrBindingToBinding(ref.String(), b.Target.String())
	}
	s.bindings[ref] = b
	return cloneBinding(b), nil
}

// PutAction creates or overwrites an action in a literal package or at
// the top level.
func (s *Store) PutAction(_ context.Context, a ir.Action, overwrite bool) (ir.Action, error) {
	ref := a.Ref()

	s.mu.Lock()
	defer s.mu.Unlock()

	if pkgRef, ok := ref.PackageRef(); ok {
		if _, isBinding := s.bindings[pkgRef]; isBinding {
			return ir.Action{}, entity.ErrActionInBinding(ref.String())
		}
		if _, exists := s.packages[pkgRef]; !exists {
			return ir.Action{}, ir.NewNotFoundError(ir.KindPackage, pkgRef.String())
		}
	}
	a = cloneAction(a)
	a.Version = ir.InitialEntityVersion
	if old, ok := s.actions[ref]; ok {
		if !overwrite {
			return ir.Action{}, entity.ErrExists(ir.KindAction, ref.String())
		}
		a.Version = ir.NextVersion(old.Version)
	}
	s.actions[ref] = a
	return cloneAction(a), nil
}

// DeletePackage removes an empty package.
func (s *Store) DeletePackage(_ context.Context, ref ir.EntityRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.packages[ref]; !ok {
		return ir.NewNotFoundError(ir.KindPackage, ref.String())
	}
	n := 0
	for aref := range s.actions {
		if aref.Namespace == ref.Namespace && aref.Package == ref.Name {
			n++
		}
	}
	if n > 0 {
		return entity.ErrPackageNotEmpty(ref.String(), n)
	}
	delete(s.packages, ref)
	return nil
}

// DeleteBinding removes a binding. The target package is untouched.
func (s *Store) DeleteBinding(_ context.Context, ref ir.EntityRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bindings[ref]; !ok {
		return ir.NewNotFoundError(ir.KindBinding, ref.String())
	}
	delete(s.bindings, ref)
	return nil
}

// DeleteAction removes an action.
func (s *Store) DeleteAction(_ context.Context, ref ir.ActionRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actions[ref]; !ok {
		return ir.NewNotFoundError(ir.KindAction, ref.String())
	}
	delete(s.actions, ref)
	return nil
}

// ListPackages returns the namespace's packages ordered by name.
func (s *Store) ListPackages(_ context.Context, namespace string) ([]ir.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ir.Package, 0)
	for ref, p := range s.packages {
		if ref.Namespace == namespace {
			out = append(out, clonePackage(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListBindings returns the namespace's bindings ordered by name.
func (s *Store) ListBindings(_ context.Context, namespace string) ([]ir.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ir.Binding, 0)
	for ref, b := range s.bindings {
		if ref.Namespace == namespace {
			out = append(out, cloneBinding(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListActions returns actions ordered by package then name.
func (s *Store) ListActions(_ context.Context, namespace, pkg string) ([]ir.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ir.Action, 0)
	for ref, a := range s.actions {
		if ref.Namespace != namespace || (pkg != "" && ref.Package != pkg) {
			continue
		}
		out = append(out, cloneAction(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func clonePackage(p ir.Package) ir.Package {
	p.Parameters = p.Parameters.Clone()
	p.Annotations = p.Annotations.Clone()
	return p
}

func cloneBinding(b ir.Binding) ir.Binding {
	b.Parameters = b.Parameters.Clone()
	b.Annotations = b.Annotations.Clone()
	return b
}

func cloneAction(a ir.Action) ir.Action {
	a.Parameters = a.Parameters.Clone()
	a.Annotations = a.Annotations.Clone()
	return a
}
