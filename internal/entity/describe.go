package entity

import (
	"context"

	"github.com/roach88/nimbus/internal/ir"
)

// PackageDescription is the rendered view of a package or binding.
//
// For a binding, Parameters are the target's parameters merged with the
// binding's own, and Actions lists the target package's actions. A binding
// whose target no longer exists reports only its own parameters.
type PackageDescription struct {
	Namespace   string          `json:"namespace"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Binding     *ir.EntityRef   `json:"binding,omitempty"`
	Parameters  ir.ParameterSet `json:"parameters"`
	Annotations ir.ParameterSet `json:"annotations"`
	Actions     []string        `json:"actions"`
}

// ActionDescription is the rendered view of an action as seen through the
// target it was named by.
type ActionDescription struct {
	Namespace   string          `json:"namespace"`
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	Version     string          `json:"version"`
	Exec        ir.Exec         `json:"exec"`
	Kind        string          `json:"resolution"`
	Binding     string          `json:"binding,omitempty"`
	Parameters  ir.ParameterSet `json:"parameters"`
	Annotations ir.ParameterSet `json:"annotations"`
}

// DescribePackage describes a package or binding by name.
func (m *Manager) DescribePackage(ctx context.Context, namespace, name string) (PackageDescription, error) {
	ref, err := ir.ParseEntityRef(ir.KindPackage, namespace, name)
	if err != nil {
		return PackageDescription{}, err
	}

	b, err := m.store.LookupBinding(ctx, ref)
	switch {
	case err == nil:
		return m.describeBinding(ctx, b)
	case !ir.IsNotFound(err):
		return PackageDescription{}, err
	}

	p, err := m.store.LookupPackage(ctx, ref)
	if err != nil {
		return PackageDescription{}, err
	}
	actions, err := m.actionNames(ctx, p.Ref())
	if err != nil {
		return PackageDescription{}, err
	}
	return PackageDescription{
		Namespace:   p.Namespace,
		Name:        p.Name,
		Version:     p.Version,
		Parameters:  p.Parameters,
		Annotations: p.Annotations,
		Actions:     actions,
	}, nil
}

func (m *Manager) describeBinding(ctx context.Context, b ir.Binding) (PackageDescription, error) {
	target := b.Target
	d := PackageDescription{
		Namespace:   b.Namespace,
		Name:        b.Name,
		Version:     b.Version,
		Binding:     &target,
		Parameters:  b.Parameters,
		Annotations: b.Annotations,
		Actions:     []string{},
	}

	p, err := m.store.LookupPackage(ctx, b.Target)
	if ir.IsNotFound(err) {
		m.logger.Warn("binding target missing", "binding", b.Ref().String(), "target", b.Target.String())
		return d, nil
	}
	if err != nil {
		return PackageDescription{}, err
	}

	d.Parameters = ir.Merge(p.Parameters, b.Parameters)
	d.Actions, err = m.actionNames(ctx, p.Ref())
	if err != nil {
		return PackageDescription{}, err
	}
	return d, nil
}

func (m *Manager) actionNames(ctx context.Context, pkg ir.EntityRef) ([]string, error) {
	actions, err := m.store.ListActions(ctx, pkg.Namespace, pkg.Name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.Name)
	}
	return names, nil
}

// DescribeAction resolves target and describes the action it reaches with
// its effective parameters.
func (m *Manager) DescribeAction(ctx context.Context, namespace, target string) (ActionDescription, error) {
	res, err := m.resolver.Resolve(ctx, namespace, target)
	if err != nil {
		return ActionDescription{}, err
	}

	d := ActionDescription{
		Namespace:   res.Target.Namespace,
		Name:        res.Target.Name,
		Path:        res.Path(),
		Version:     res.Action.Version,
		Exec:        res.Action.Exec,
		Kind:        res.Kind.String(),
		Parameters:  res.Parameters,
		Annotations: res.Action.Annotations,
	}
	if ref, ok := res.Provenance(); ok {
		d.Binding = ref.String()
	}
	return d, nil
}

// ListPackages returns the packages in namespace ordered by name.
func (m *Manager) ListPackages(ctx context.Context, namespace string) ([]ir.Package, error) {
	return m.store.ListPackages(ctx, namespace)
}

// ListBindings returns the bindings in namespace ordered by name.
func (m *Manager) ListBindings(ctx context.Context, namespace string) ([]ir.Binding, error) {
	return m.store.ListBindings(ctx, namespace)
}

// ListActions lists the actions of pkg, or of the whole namespace when pkg
// is empty. A binding name lists its target package's actions.
func (m *Manager) ListActions(ctx context.Context, namespace, pkg string) ([]ir.Action, error) {
	if pkg == "" {
		return m.store.ListActions(ctx, namespace, "")
	}
	ref, err := ir.ParseEntityRef(ir.KindPackage, namespace, pkg)
	if err != nil {
		return nil, err
	}
	if b, err := m.store.LookupBinding(ctx, ref); err == nil {
		ref = b.Target
	} else if !ir.IsNotFound(err) {
		return nil, err
	}
	if _, err := m.store.LookupPackage(ctx, ref); err != nil {
		return nil, err
	}
	return m.store.ListActions(ctx, ref.Namespace, ref.Name)
}
