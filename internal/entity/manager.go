package entity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/resolve"
)

// Observer receives one call per entity write. op is "put" or "delete";
// outcome is "ok" or the lowercased error code.
type Observer interface {
	ObserveWrite(kind, op, outcome string)
}

// Manager is the entity-management surface used by the CLI, REST API and
// manifest loader.
type Manager struct {
	store    Store
	resolver *resolve.Resolver
	observer Observer
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver reports every write to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithResolver sets the resolver used by DescribeAction. Defaults to a
// resolver over the manager's store.
func WithResolver(r *resolve.Resolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

// NewManager creates a Manager over s.
func NewManager(s Store, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.resolver == nil {
		m.resolver = resolve.New(s, resolve.WithLogger(m.logger))
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// CreatePackage creates a package, or replaces its own parameters and
// annotations wholesale when update is true.
func (m *Manager) CreatePackage(ctx context.Context, namespace, name string, params, annotations ir.ParameterSet, update bool) (ir.Package, error) {
	ref, err := ir.ParseEntityRef(ir.KindPackage, namespace, name)
	if err != nil {
		return ir.Package{}, err
	}
	if err := validateSets(ir.KindPackage, ref.String(), params, annotations); err != nil {
		return ir.Package{}, err
	}

	p, err := m.store.PutPackage(ctx, ir.Package{
		Namespace:   ref.Namespace,
		Name:        ref.Name,
		Parameters:  params,
		Annotations: annotations,
	}, update)
	m.observe(ir.KindPackage, "put", err)
	if err != nil {
		return ir.Package{}, err
	}

	m.logger.Info("package written",
		"package", ref.String(),
		"version", p.Version,
		"update", update,
		"parameters", p.Parameters.Len(),
	)
	return p, nil
}

// CreateBinding creates a binding named name over target, or replaces its
// own parameters when update is true. target must name an existing literal
// package; a binding to a binding is INVALID_NAME.
func (m *Manager) CreateBinding(ctx context.Context, namespace, name string, target ir.EntityRef, params, annotations ir.ParameterSet, update bool) (ir.Binding, error) {
	ref, err := ir.ParseEntityRef(ir.KindBinding, namespace, name)
	if err != nil {
		return ir.Binding{}, err
	}
	if target.Namespace == "" || target.Namespace == ir.DefaultNamespace {
		target.Namespace = ref.Namespace
	}
	if err := ir.ValidateName(ir.KindPackage, target.Name); err != nil {
		return ir.Binding{}, err
	}
	if err := validateSets(ir.KindBinding, ref.String(), params, annotations); err != nil {
		return ir.Binding{}, err
	}
	if err := m.checkBindingTarget(ctx, ref, target); err != nil {
		return ir.Binding{}, err
	}

	b, err := m.store.PutBinding(ctx, ir.Binding{
		Namespace:   ref.Namespace,
		Name:        ref.Name,
		Target:      target,
		Parameters:  params,
		Annotations: annotations,
	}, update)
	m.observe(ir.KindBinding, "put", err)
	if err != nil {
		return ir.Binding{}, err
	}

	m.logger.Info("binding written",
		"binding", ref.String(),
		"target", target.String(),
		"version", b.Version,
		"update", update,
		"parameters", b.Parameters.Len(),
	)
	return b, nil
}

func (m *Manager) checkBindingTarget(ctx context.Context, ref, target ir.EntityRef) error {
	if target == ref {
		return ir.NewInvalidNameError(ir.KindBinding, ref.String(), "binding cannot target itself")
	}
	_, err := m.store.LookupPackage(ctx, target)
	if err == nil {
		return nil
	}
	if !ir.IsNotFound(err) {
		return err
	}
	if _, berr := m.store.LookupBinding(ctx, target); berr == nil {
		return ErrBindingToBinding(ref.String(), target.String())
	}
	return ir.NewNotFoundError(ir.KindPackage, target.String())
}

// CreateAction creates an action named by qualifiedName ("action",
// "pkg/action" or "/ns/pkg/action"). The package segment must name a
// literal package.
func (m *Manager) CreateAction(ctx context.Context, namespace, qualifiedName string, exec ir.Exec, params, annotations ir.ParameterSet, update bool) (ir.Action, error) {
	t, err := ir.ParseTarget(namespace, qualifiedName)
	if err != nil {
		return ir.Action{}, err
	}
	ref := t.ActionRef()
	if err := validateSets(ir.KindAction, ref.String(), params, annotations); err != nil {
		return ir.Action{}, err
	}
	if exec.Kind == "" {
		exec.Kind = ir.DefaultExecKind
	}

	a, err := m.store.PutAction(ctx, ir.Action{
		Namespace:   ref.Namespace,
		Package:     ref.Package,
		Name:        ref.Name,
		Exec:        exec,
		Parameters:  params,
		Annotations: annotations,
	}, update)
	m.observe(ir.KindAction, "put", err)
	if err != nil {
		return ir.Action{}, err
	}

	m.logger.Info("action written",
		"action", ref.String(),
		"kind", exec.Kind,
		"version", a.Version,
		"update", update,
	)
	return a, nil
}

// DeletePackage deletes a package or a binding; the two share a name space.
// A package that still owns actions is a CONFLICT.
func (m *Manager) DeletePackage(ctx context.Context, namespace, name string) error {
	ref, err := ir.ParseEntityRef(ir.KindPackage, namespace, name)
	if err != nil {
		return err
	}

	kind := ir.KindPackage
	if _, berr := m.store.LookupBinding(ctx, ref); berr == nil {
		kind = ir.KindBinding
		err = m.store.DeleteBinding(ctx, ref)
	} else {
		err = m.store.DeletePackage(ctx, ref)
	}
	m.observe(kind, "delete", err)
	if err != nil {
		return err
	}

	m.logger.Info(kind+" deleted", kind, ref.String())
	return nil
}

// DeleteAction deletes an action.
func (m *Manager) DeleteAction(ctx context.Context, namespace, qualifiedName string) error {
	t, err := ir.ParseTarget(namespace, qualifiedName)
	if err != nil {
		return err
	}
	err = m.store.DeleteAction(ctx, t.ActionRef())
	m.observe(ir.KindAction, "delete", err)
	if err != nil {
		return err
	}

	m.logger.Info("action deleted", "action", t.String())
	return nil
}

func (m *Manager) observe(kind, op string, err error) {
	if m.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if code := ir.CodeOf(err); code != "" {
			outcome = strings.ToLower(string(code))
		}
	}
	m.observer.ObserveWrite(kind, op, outcome)
}

func validateSets(kind, name string, params, annotations ir.ParameterSet) error {
	if err := params.Validate(); err != nil {
		return ir.NewInvalidArgumentError(kind, name, err)
	}
	if err := annotations.Validate(); err != nil {
		return ir.NewInvalidArgumentError(kind, name, fmt.Errorf("annotations: %w", err))
	}
	return nil
}
