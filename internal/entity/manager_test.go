package entity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/adapters/memory"
	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
)

const ns = "guest"

type writeRecord struct {
	kind, op, outcome string
}

type recordingObserver struct {
	writes []writeRecord
}

func (o *recordingObserver) ObserveWrite(kind, op, outcome string) {
	o.writes = append(o.writes, writeRecord{kind, op, outcome})
}

func newManager(t *testing.T, opts ...entity.Option) *entity.Manager {
	t.Helper()
	return entity.NewManager(memory.NewStore(), opts...)
}

// seed creates weather{units=metric, region=us} with action forecast{days=3}.
func seed(t *testing.T, m *entity.Manager) {
	t.Helper()
	ctx := context.Background()
	_, err := m.CreatePackage(ctx, ns, "weather", ir.Strings("units", "metric", "region", "us"), nil, false)
	require.NoError(t, err)
	_, err = m.CreateAction(ctx, ns, "weather/forecast", ir.Exec{}, ir.Strings("days", "3"), nil, false)
	require.NoError(t, err)
}

func TestCreatePackage(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	p, err := m.CreatePackage(ctx, ns, "weather", ir.Strings("units", "metric"), ir.Strings("owner", "ops"), false)
	require.NoError(t, err)
	assert.Equal(t, ir.InitialEntityVersion, p.Version)
	assert.Equal(t, "guest", p.Namespace)

	_, err = m.CreatePackage(ctx, ns, "weather", nil, nil, false)
	assert.True(t, ir.IsConflict(err), "got %v", err)

	p, err = m.CreatePackage(ctx, ns, "weather", ir.Strings("region", "eu"), nil, true)
	require.NoError(t, err)
	assert.Equal(t, "0.0.2", p.Version)
	assert.Equal(t, []string{"region"}, p.Parameters.Keys())
}

func TestCreatePackage_ExplicitNamespace(t *testing.T) {
	m := newManager(t)

	p, err := m.CreatePackage(context.Background(), ns, "/system/utils", nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "system", p.Namespace)
	assert.Equal(t, "utils", p.Name)
}

func TestCreatePackage_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	_, err := m.CreatePackage(ctx, ns, "bad$name", nil, nil, false)
	assert.True(t, ir.IsInvalidName(err), "got %v", err)

	dup := ir.ParameterSet{ir.P("a", ir.String("1")), ir.P("a", ir.String("2"))}
	_, err = m.CreatePackage(ctx, ns, "p", dup, nil, false)
	assert.True(t, ir.IsInvalidArgument(err), "got %v", err)
	assert.Contains(t, err.Error(), "duplicate key")

	_, err = m.CreatePackage(ctx, ns, "p", nil, dup, false)
	assert.True(t, ir.IsInvalidArgument(err), "got %v", err)
	assert.Contains(t, err.Error(), "annotations")

	_, err = m.DescribePackage(ctx, ns, "p")
	assert.True(t, ir.IsNotFound(err), "rejected input must not be written")
}

func TestCreateBinding(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	seed(t, m)

	b, err := m.CreateBinding(ctx, ns, "myWeather", ir.EntityRef{Name: "weather"}, ir.Strings("region", "eu"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, ir.EntityRef{Namespace: ns, Name: "weather"}, b.Target)
	assert.Equal(t, ir.InitialEntityVersion, b.Version)

	b, err = m.CreateBinding(ctx, ns, "myWeather", ir.EntityRef{Name: "weather"}, ir.Strings("units", "imperial"), nil, true)
	require.NoError(t, err)
	assert.Equal(t, "0.0.2", b.Version)
	assert.Equal(t, []string{"units"}, b.Parameters.Keys())
}

func TestCreateBinding_TargetRules(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	seed(t, m)
	_, err := m.CreateBinding(ctx, ns, "b1", ir.EntityRef{Name: "weather"}, nil, nil, false)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target ir.EntityRef
		check  func(error) bool
	}{
		{"missing target", ir.EntityRef{Name: "nope"}, ir.IsNotFound},
		{"binding target", ir.EntityRef{Name: "b1"}, ir.IsInvalidName},
		{"self target", ir.EntityRef{Namespace: ns, Name: "b2"}, ir.IsInvalidName},
		{"invalid target name", ir.EntityRef{Name: "bad$"}, ir.IsInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateBinding(ctx, ns, "b2", tt.target, nil, nil, false)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	_, err = m.CreateBinding(ctx, ns, "weather", ir.EntityRef{Name: "weather"}, nil, nil, true)
	assert.True(t, ir.IsInvalidName(err) || ir.IsConflict(err), "got %v", err)
}

func TestCreateBinding_CrossNamespace(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	_, err := m.CreatePackage(ctx, "system", "utils", ir.Strings("a", "1"), nil, false)
	require.NoError(t, err)

	b, err := m.CreateBinding(ctx, ns, "u", ir.EntityRef{Namespace: "system", Name: "utils"}, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "system/utils", b.Target.String())
	assert.Equal(t, ns, b.Namespace)
}

func TestCreateAction(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	seed(t, m)

	a, err := m.CreateAction(ctx, ns, "hello", ir.Exec{}, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, ir.DefaultExecKind, a.Exec.Kind)
	assert.Empty(t, a.Package)

	_, err = m.CreateAction(ctx, ns, "missing/act", ir.Exec{}, nil, nil, false)
	assert.True(t, ir.IsNotFound(err), "got %v", err)

	_, err = m.CreateBinding(ctx, ns, "myWeather", ir.EntityRef{Name: "weather"}, nil, nil, false)
	require.NoError(t, err)
	_, err = m.CreateAction(ctx, ns, "myWeather/act", ir.Exec{}, nil, nil, false)
	assert.True(t, ir.IsInvalidName(err), "got %v", err)

	_, err = m.CreateAction(ctx, ns, "weather/forecast", ir.Exec{}, nil, nil, false)
	assert.True(t, ir.IsConflict(err), "got %v", err)
}

func TestDeletePackage(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	seed(t, m)
	_, err := m.CreateBinding(ctx, ns, "myWeather", ir.EntityRef{Name: "weather"}, nil, nil, false)
	require.NoError(t, err)

	err = m.DeletePackage(ctx, ns, "weather")
	assert.True(t, ir.IsConflict(err), "non-empty package: got %v", err)

	require.NoError(t, m.DeletePackage(ctx, ns, "myWeather"))
	_, err = m.DescribePackage(ctx, ns, "myWeather")
	assert.True(t, ir.IsNotFound(err))

	require.NoError(t, m.DeleteAction(ctx, ns, "weather/forecast"))
	require.NoError(t, m.DeletePackage(ctx, ns, "weather"))

	err = m.DeletePackage(ctx, ns, "weather")
	assert.True(t, ir.IsNotFound(err))
	err = m.DeleteAction(ctx, ns, "weather/forecast")
	assert.True(t, ir.IsNotFound(err))
}

func TestDescribePackage(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	seed(t, m)

	d, err := m.DescribePackage(ctx, ns, "weather")
	require.NoError(t, err)
	assert.Nil(t, d.Binding)
	assert.Equal(t, []string{"forecast"}, d.Actions)
	assert.True(t, d.Parameters.Equal(ir.Strings("units", "metric", "region", "us")))
}

func TestDescribePackage_BindingMergesTarget(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	seed(t, m)
	_, err := m.CreateBinding(ctx, ns, "myWeather", ir.EntityRef{Name: "weather"}, ir.Strings("region", "eu", "key", "k1"), nil, false)
	require.NoError(t, err)

	d, err := m.DescribePackage(ctx, ns, "myWeather")
	require.NoError(t, err)
	require.NotNil(t, d.Binding)
	assert.Equal(t, "guest/weather", d.Binding.String())
	assert.Equal(t, []string{"forecast"}, d.Actions)
	want := ir.Strings("units", "metric", "region", "eu", "key", "k1")
	assert.True(t, d.Parameters.Equal(want), "got %v", d.Parameters)
}

func TestDescribePackage_DanglingBinding(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	_, err := m.CreatePackage(ctx, ns, "weather", ir.Strings("units", "metric"), nil, false)
	require.NoError(t, err)
	_, err = m.CreateBinding(ctx, ns, "myWeather", ir.EntityRef{Name: "weather"}, ir.Strings("region", "eu"), nil, false)
	require.NoError(t, err)
	require.NoError(t, m.DeletePackage(ctx, ns, "weather"))

	d, err := m.DescribePackage(ctx, ns, "myWeather")
	require.NoError(t, err)
	assert.True(t, d.Parameters.Equal(ir.Strings("region", "eu")))
	assert.Empty(t, d.Actions)
}

func TestDescribeAction(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	seed(t, m)
	_, err := m.CreateBinding(ctx, ns, "myWeather", ir.EntityRef{Name: "weather"}, ir.Strings("region", "eu"), nil, false)
	require.NoError(t, err)

	d, err := m.DescribeAction(ctx, ns, "myWeather/forecast")
	require.NoError(t, err)
	assert.Equal(t, "guest/weather/forecast", d.Path)
	assert.Equal(t, "bound", d.Kind)
	assert.Equal(t, "guest/myWeather", d.Binding)
	assert.True(t, d.Parameters.Equal(ir.Strings("units", "metric", "region", "eu", "days", "3")), "got %v", d.Parameters)

	d, err = m.DescribeAction(ctx, ns, "weather/forecast")
	require.NoError(t, err)
	assert.Equal(t, "literal", d.Kind)
	assert.Empty(t, d.Binding)

	_, err = m.DescribeAction(ctx, ns, "myWeather/nope")
	assert.True(t, ir.IsNotFound(err))
}

func TestListActions_ThroughBinding(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	seed(t, m)
	_, err := m.CreateAction(ctx, ns, "top", ir.Exec{}, nil, nil, false)
	require.NoError(t, err)
	_, err = m.CreateBinding(ctx, ns, "myWeather", ir.EntityRef{Name: "weather"}, nil, nil, false)
	require.NoError(t, err)

	actions, err := m.ListActions(ctx, ns, "myWeather")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "forecast", actions[0].Name)

	all, err := m.ListActions(ctx, ns, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = m.ListActions(ctx, ns, "nope")
	assert.True(t, ir.IsNotFound(err))

	pkgs, err := m.ListPackages(ctx, ns)
	require.NoError(t, err)
	assert.Len(t, pkgs, 1)
	bindings, err := m.ListBindings(ctx, ns)
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
}

func TestManager_ObservesWrites(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	m := newManager(t, entity.WithObserver(obs))

	_, err := m.CreatePackage(ctx, ns, "p", nil, nil, false)
	require.NoError(t, err)
	_, err = m.CreatePackage(ctx, ns, "p", nil, nil, false)
	require.Error(t, err)
	require.NoError(t, m.DeletePackage(ctx, ns, "p"))

	assert.Equal(t, []writeRecord{
		{"package", "put", "ok"},
		{"package", "put", "conflict"},
		{"package", "delete", "ok"},
	}, obs.writes)
}
