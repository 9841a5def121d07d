// Package entitytest holds the behavioral contract every entity.Store and
// entity.ActivationStore backend must satisfy.
package entitytest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
)

const ns = "guest"

func pkg(name string, params ir.ParameterSet) ir.Package {
	return ir.Package{Namespace: ns, Name: name, Parameters: params}
}

func binding(name, target string, params ir.ParameterSet) ir.Binding {
	return ir.Binding{
		Namespace:  ns,
		Name:       name,
		Target:     ir.EntityRef{Namespace: ns, Name: target},
		Parameters: params,
	}
}

func action(pkgName, name string, params ir.ParameterSet) ir.Action {
	return ir.Action{
		Namespace:  ns,
		Package:    pkgName,
		Name:       name,
		Exec:       ir.Exec{Kind: ir.DefaultExecKind},
		Parameters: params,
	}
}

func ref(name string) ir.EntityRef {
	return ir.EntityRef{Namespace: ns, Name: name}
}

// RunStoreContract runs the entity.Store contract. newStore must return an
// empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) entity.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("PackageCreateAndLookup", func(t *testing.T) {
		s := newStore(t)
		params := ir.MustParameterSet(
			ir.P("z", ir.String("last")),
			ir.P("a", ir.Int(7)),
			ir.P("obj", ir.Object{"nested": ir.Array{ir.Bool(true), ir.Null{}}}),
			ir.P("empty", ir.String("")),
		)

		stored, err := s.PutPackage(ctx, pkg("P", params), false)
		require.NoError(t, err)
		assert.Equal(t, ir.InitialEntityVersion, stored.Version)

		got, err := s.LookupPackage(ctx, ref("P"))
		require.NoError(t, err)
		assert.Equal(t, "P", got.Name)
		assert.Equal(t, ns, got.Namespace)
		assert.True(t, got.Parameters.Equal(params), "parameter order and values must survive storage, got %v", got.Parameters)
	})

	t.Run("PackageCreateExistingConflicts", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", ir.Strings("a", "1")), false)
		require.NoError(t, err)

		_, err = s.PutPackage(ctx, pkg("P", ir.Strings("a", "2")), false)
		require.Error(t, err)
		assert.True(t, ir.IsConflict(err), "got %v", err)

		got, err := s.LookupPackage(ctx, ref("P"))
		require.NoError(t, err)
		assert.True(t, got.Parameters.Equal(ir.Strings("a", "1")))
	})

	t.Run("PackageOverwriteReplacesWholesale", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", ir.Strings("p1", "v1", "p2", "")), false)
		require.NoError(t, err)

		stored, err := s.PutPackage(ctx, pkg("P", ir.Strings("p1", "v1", "p2", "v2", "p3", "v3")), true)
		require.NoError(t, err)
		assert.Equal(t, "0.0.2", stored.Version)
		assert.True(t, stored.Parameters.Equal(ir.Strings("p1", "v1", "p2", "v2", "p3", "v3")), "got %v", stored.Parameters)

		got, err := s.LookupPackage(ctx, ref("P"))
		require.NoError(t, err)
		assert.True(t, got.Parameters.Equal(ir.Strings("p1", "v1", "p2", "v2", "p3", "v3")), "got %v", got.Parameters)

		_, err = s.PutPackage(ctx, pkg("P", ir.Strings("only", "x")), true)
		require.NoError(t, err)

		got, err = s.LookupPackage(ctx, ref("P"))
		require.NoError(t, err)
		assert.True(t, got.Parameters.Equal(ir.Strings("only", "x")), "got %v", got.Parameters)
		assert.Equal(t, "0.0.3", got.Version)
	})

	t.Run("PackageMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.LookupPackage(ctx, ref("nope"))
		assert.True(t, ir.IsNotFound(err), "got %v", err)
	})

	t.Run("BindingCreateAndLookup", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", nil), false)
		require.NoError(t, err)

		stored, err := s.PutBinding(ctx, binding("B", "P", ir.Strings("k", "v")), false)
		require.NoError(t, err)
		assert.Equal(t, ir.InitialEntityVersion, stored.Version)

		got, err := s.LookupBinding(ctx, ref("B"))
		require.NoError(t, err)
		assert.Equal(t, ref("P"), got.Target)
		assert.True(t, got.Parameters.Equal(ir.Strings("k", "v")))

		_, err = s.PutBinding(ctx, binding("B", "P", nil), false)
		assert.True(t, ir.IsConflict(err), "got %v", err)

		updated, err := s.PutBinding(ctx, binding("B", "P", nil), true)
		require.NoError(t, err)
		assert.Equal(t, "0.0.2", updated.Version)
		got, err = s.LookupBinding(ctx, ref("B"))
		require.NoError(t, err)
		assert.Equal(t, 0, got.Parameters.Len())
	})

	t.Run("KindsAreDisjointOnLookup", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", nil), false)
		require.NoError(t, err)
		_, err = s.PutBinding(ctx, binding("B", "P", nil), false)
		require.NoError(t, err)

		_, err = s.LookupPackage(ctx, ref("B"))
		assert.True(t, ir.IsNotFound(err), "binding must not be returned as a package, got %v", err)
		_, err = s.LookupBinding(ctx, ref("P"))
		assert.True(t, ir.IsNotFound(err), "package must not be returned as a binding, got %v", err)
	})

	t.Run("SharedNameSpace", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", nil), false)
		require.NoError(t, err)
		_, err = s.PutBinding(ctx, binding("B", "P", nil), false)
		require.NoError(t, err)

		for _, overwrite := range []bool{false, true} {
			_, err = s.PutBinding(ctx, binding("P", "P", nil), overwrite)
			assert.True(t, ir.IsConflict(err), "binding over package (overwrite=%v): %v", overwrite, err)

			_, err = s.PutPackage(ctx, pkg("B", nil), overwrite)
			assert.True(t, ir.IsConflict(err), "package over binding (overwrite=%v): %v", overwrite, err)
		}
	})

	t.Run("BindingToBindingRejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", nil), false)
		require.NoError(t, err)
		_, err = s.PutBinding(ctx, binding("B", "P", nil), false)
		require.NoError(t, err)

		_, err = s.PutBinding(ctx, binding("C", "B", ir.Strings("k", "v")), false)
		assert.True(t, ir.IsInvalidName(err), "got %v", err)
		_, err = s.LookupBinding(ctx, ref("C"))
		assert.True(t, ir.IsNotFound(err), "rejected binding must not be stored, got %v", err)

		_, err = s.PutBinding(ctx, binding("B", "B", nil), true)
		assert.True(t, ir.IsInvalidName(err), "got %v", err)
		got, err := s.LookupBinding(ctx, ref("B"))
		require.NoError(t, err)
		assert.Equal(t, ref("P"), got.Target)
		assert.Equal(t, ir.InitialEntityVersion, got.Version)
	})

	t.Run("ActionCreate", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", nil), false)
		require.NoError(t, err)

		stored, err := s.PutAction(ctx, action("P", "act", ir.Strings("key0", "value0")), false)
		require.NoError(t, err)
		assert.Equal(t, ir.InitialEntityVersion, stored.Version)

		_, err = s.PutAction(ctx, action("", "act", ir.Strings("top", "1")), false)
		require.NoError(t, err, "top-level action may share a packaged action's simple name")

		got, err := s.LookupAction(ctx, ir.ActionRef{Namespace: ns, Package: "P", Name: "act"})
		require.NoError(t, err)
		assert.Equal(t, ir.DefaultExecKind, got.Exec.Kind)
		assert.True(t, got.Parameters.Equal(ir.Strings("key0", "value0")))

		top, err := s.LookupAction(ctx, ir.ActionRef{Namespace: ns, Name: "act"})
		require.NoError(t, err)
		assert.True(t, top.Parameters.Equal(ir.Strings("top", "1")))

		_, err = s.PutAction(ctx, action("P", "act", nil), false)
		assert.True(t, ir.IsConflict(err), "got %v", err)

		updated, err := s.PutAction(ctx, action("P", "act", nil), true)
		require.NoError(t, err)
		assert.Equal(t, "0.0.2", updated.Version)
	})

	t.Run("ActionRequiresLiteralPackage", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", nil), false)
		require.NoError(t, err)
		_, err = s.PutBinding(ctx, binding("B", "P", nil), false)
		require.NoError(t, err)

		_, err = s.PutAction(ctx, action("missing", "act", nil), false)
		assert.True(t, ir.IsNotFound(err), "got %v", err)

		_, err = s.PutAction(ctx, action("B", "act", nil), false)
		assert.True(t, ir.IsInvalidName(err), "got %v", err)

		_, err = s.LookupAction(ctx, ir.ActionRef{Namespace: ns, Package: "missing", Name: "act"})
		assert.True(t, ir.IsNotFound(err), "got %v", err)
	})

	t.Run("DeletePackage", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", nil), false)
		require.NoError(t, err)
		_, err = s.PutAction(ctx, action("P", "act", nil), false)
		require.NoError(t, err)

		err = s.DeletePackage(ctx, ref("P"))
		assert.True(t, ir.IsConflict(err), "non-empty package delete: %v", err)

		require.NoError(t, s.DeleteAction(ctx, ir.ActionRef{Namespace: ns, Package: "P", Name: "act"}))
		require.NoError(t, s.DeletePackage(ctx, ref("P")))

		_, err = s.LookupPackage(ctx, ref("P"))
		assert.True(t, ir.IsNotFound(err))
		assert.True(t, ir.IsNotFound(s.DeletePackage(ctx, ref("P"))))
		assert.True(t, ir.IsNotFound(s.DeleteAction(ctx, ir.ActionRef{Namespace: ns, Package: "P", Name: "act"})))
	})

	t.Run("DeleteBindingKeepsTarget", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", ir.Strings("a", "1")), false)
		require.NoError(t, err)
		_, err = s.PutBinding(ctx, binding("B", "P", nil), false)
		require.NoError(t, err)

		require.NoError(t, s.DeleteBinding(ctx, ref("B")))
		assert.True(t, ir.IsNotFound(s.DeleteBinding(ctx, ref("B"))))
		assert.True(t, ir.IsNotFound(s.DeletePackage(ctx, ref("B"))), "a binding name is not a package")

		got, err := s.LookupPackage(ctx, ref("P"))
		require.NoError(t, err)
		assert.True(t, got.Parameters.Equal(ir.Strings("a", "1")))

		_, err = s.PutPackage(ctx, pkg("B", nil), false)
		require.NoError(t, err, "deleted binding name is free again")
	})

	t.Run("Lists", func(t *testing.T) {
		s := newStore(t)
		for _, name := range []string{"zeta", "alpha", "mid"} {
			_, err := s.PutPackage(ctx, pkg(name, nil), false)
			require.NoError(t, err)
		}
		_, err := s.PutPackage(ctx, ir.Package{Namespace: "other", Name: "elsewhere"}, false)
		require.NoError(t, err)
		_, err = s.PutBinding(ctx, binding("b2", "alpha", nil), false)
		require.NoError(t, err)
		_, err = s.PutBinding(ctx, binding("b1", "zeta", nil), false)
		require.NoError(t, err)
		_, err = s.PutAction(ctx, action("zeta", "x", nil), false)
		require.NoError(t, err)
		_, err = s.PutAction(ctx, action("alpha", "y", nil), false)
		require.NoError(t, err)
		_, err = s.PutAction(ctx, action("alpha", "b", nil), false)
		require.NoError(t, err)
		_, err = s.PutAction(ctx, action("", "top", nil), false)
		require.NoError(t, err)

		pkgs, err := s.ListPackages(ctx, ns)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "mid", "zeta"}, packageNames(pkgs))

		bindings, err := s.ListBindings(ctx, ns)
		require.NoError(t, err)
		assert.Equal(t, []string{"b1", "b2"}, bindingNames(bindings))

		all, err := s.ListActions(ctx, ns, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"guest/top", "guest/alpha/b", "guest/alpha/y", "guest/zeta/x"}, actionPaths(all))

		alpha, err := s.ListActions(ctx, ns, "alpha")
		require.NoError(t, err)
		assert.Equal(t, []string{"guest/alpha/b", "guest/alpha/y"}, actionPaths(alpha))

		empty, err := s.ListPackages(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ReadsAreIsolated", func(t *testing.T) {
		s := newStore(t)
		_, err := s.PutPackage(ctx, pkg("P", ir.Strings("a", "1")), false)
		require.NoError(t, err)

		got, err := s.LookupPackage(ctx, ref("P"))
		require.NoError(t, err)
		got.Parameters[0].Value = ir.String("mutated")

		again, err := s.LookupPackage(ctx, ref("P"))
		require.NoError(t, err)
		assert.True(t, again.Parameters.Equal(ir.Strings("a", "1")))
	})
}

// RunActivationStoreContract runs the entity.ActivationStore contract.
func RunActivationStoreContract(t *testing.T, newStore func(t *testing.T) entity.ActivationStore) {
	t.Helper()
	ctx := context.Background()

	record := func(id string, start, seq int64, annotations ir.ParameterSet) ir.Activation {
		return ir.Activation{
			ActivationID: id,
			Namespace:    ns,
			Name:         "act",
			Version:      ir.InitialEntityVersion,
			Seq:          seq,
			Start:        start,
			End:          start + 1,
			Response: ir.Response{
				Status:  ir.StatusSuccess,
				Success: true,
				Result:  ir.Object{"k": ir.String("v")},
			},
			Logs:        []string{"line 1"},
			Annotations: annotations,
			Digest:      "abc",
		}
	}

	t.Run("PutAndGet", func(t *testing.T) {
		s := newStore(t)
		bound := record("a1", 100, 1, ir.Strings("path", "guest/P/act", "kind", "echo", "binding", "guest/B"))
		require.NoError(t, s.PutActivation(ctx, bound))

		got, err := s.GetActivation(ctx, ns, "a1")
		require.NoError(t, err)
		assert.Equal(t, "act", got.Name)
		assert.Equal(t, int64(100), got.Start)
		assert.Equal(t, ir.Object{"k": ir.String("v")}, got.Response.Result)
		assert.Equal(t, []string{"line 1"}, got.Logs)
		b, ok := got.Binding()
		require.True(t, ok)
		assert.Equal(t, "guest/B", b)
	})

	t.Run("UnboundHasNoBindingAnnotation", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutActivation(ctx, record("a1", 100, 1, ir.Strings("path", "guest/P/act", "kind", "echo"))))

		got, err := s.GetActivation(ctx, ns, "a1")
		require.NoError(t, err)
		_, ok := got.Binding()
		assert.False(t, ok)
		assert.Equal(t, []string{"path", "kind"}, got.Annotations.Keys())
	})

	t.Run("DuplicateConflicts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutActivation(ctx, record("a1", 100, 1, nil)))
		err := s.PutActivation(ctx, record("a1", 200, 2, nil))
		assert.True(t, ir.IsConflict(err), "got %v", err)
	})

	t.Run("Missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetActivation(ctx, ns, "nope")
		assert.True(t, ir.IsNotFound(err), "got %v", err)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		s := newStore(t)
		for i, start := range []int64{100, 300, 200, 300} {
			id := fmt.Sprintf("a%d", i)
			require.NoError(t, s.PutActivation(ctx, record(id, start, int64(i+1), nil)))
		}
		other := record("x", 999, 9, nil)
		other.Namespace = "other"
		require.NoError(t, s.PutActivation(ctx, other))

		all, err := s.ListActivations(ctx, ns, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"a3", "a1", "a2", "a0"}, activationIDs(all))

		limited, err := s.ListActivations(ctx, ns, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a3", "a1"}, activationIDs(limited))
	})
}

func packageNames(ps []ir.Package) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func bindingNames(bs []ir.Binding) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Name
	}
	return out
}

func actionPaths(as []ir.Action) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Ref().String()
	}
	return out
}

func activationIDs(as []ir.Activation) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.ActivationID
	}
	return out
}
