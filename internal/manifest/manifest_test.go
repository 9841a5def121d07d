package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/adapters/memory"
	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/retry"
)

func assertWeatherManifest(t *testing.T, m *Manifest) {
	t.Helper()
	assert.Equal(t, "guest", m.Namespace)

	require.Len(t, m.Packages, 1)
	assert.Equal(t, "weather", m.Packages[0].Name)
	assert.Equal(t, []string{"units", "region"}, m.Packages[0].Parameters.Keys())

	require.Len(t, m.Bindings, 1)
	assert.Equal(t, "myWeather", m.Bindings[0].Name)
	assert.Equal(t, "weather", m.Bindings[0].Package)
	assert.True(t, m.Bindings[0].Parameters.Equal(ir.Strings("region", "eu")))

	require.Len(t, m.Actions, 2)
	assert.Equal(t, "weather/forecast", m.Actions[0].Name)
	assert.Equal(t, "echo", m.Actions[0].Exec.Kind)
	days, ok := m.Actions[0].Parameters.Get("days")
	require.True(t, ok)
	assert.Equal(t, ir.Int(3), days)
	assert.Equal(t, "hello", m.Actions[1].Name)
	assert.Equal(t, ir.DefaultExecKind, m.Actions[1].Exec.Kind)
}

func TestLoadFile_CUE(t *testing.T) {
	m, err := LoadFile("testdata/weather.cue")
	require.NoError(t, err)
	assertWeatherManifest(t, m)
	assert.True(t, m.Packages[0].Pos.IsValid())
}

func TestLoadFile_YAML(t *testing.T) {
	m, err := LoadFile("testdata/weather.yaml")
	require.NoError(t, err)
	assertWeatherManifest(t, m)
	assert.Equal(t, 4, m.Packages[0].Pos.Line)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFile("testdata/weather.toml")
	require.Error(t, err)
}

func TestParseYAML_PreservesOrder(t *testing.T) {
	m, err := ParseYAML("m.yaml", []byte(`
packages:
  p:
    parameters:
      zeta: 1
      alpha: 2
      mid: {b: 1, a: [x, null, true]}
`))
	require.NoError(t, err)
	ps := m.Packages[0].Parameters
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, ps.Keys())
	mid, _ := ps.Get("mid")
	assert.Equal(t, ir.Object{"b": ir.Int(1), "a": ir.Array{ir.String("x"), ir.Null{}, ir.Bool(true)}}, mid)
}

func TestParseCUE_PreservesOrder(t *testing.T) {
	m, err := ParseCUE("m.cue", []byte(`
packages: p: parameters: {
	zeta:  1
	alpha: "two"
	flag:  false
}
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "flag"}, m.Packages[0].Parameters.Keys())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"unknown section", "triggers: {}", "unknown section"},
		{"unknown package field", "packages: {p: {params: {}}}", "packages.p.params"},
		{"float parameter", "packages: {p: {parameters: {ratio: 1.5}}}", "fractional"},
		{"binding without package", "bindings: {b: {parameters: {}}}", "package is required"},
		{"non-string kind", "actions: {a: {kind: 3}}", "expected a string"},
		{"packages not a mapping", "packages: [a, b]", "expected a mapping"},
		{"bad namespace", "namespace: 'a b '", "invalid characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML("bad.yaml", []byte(tt.yaml))
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseCUE_Errors(t *testing.T) {
	_, err := ParseCUE("bad.cue", []byte(`packages: p: parameters: ratio: 1.5`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fractional")

	_, err = ParseCUE("bad.cue", []byte(`packages: p: parameters: n: int`))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)

	_, err = ParseCUE("bad.cue", []byte(`packages: {`))
	require.Error(t, err)
}

func TestParseYAML_Empty(t *testing.T) {
	m, err := ParseYAML("empty.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, m.Packages)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	mgr := entity.NewManager(memory.NewStore())

	m, err := LoadFile("testdata/weather.yaml")
	require.NoError(t, err)

	res, err := m.Apply(ctx, mgr, "other", retry.None())
	require.NoError(t, err)
	assert.Equal(t, []string{"guest/weather"}, res.Packages)
	assert.Equal(t, []string{"guest/weather/forecast", "guest/hello"}, res.Actions)
	assert.Equal(t, []string{"guest/myWeather"}, res.Bindings)

	d, err := mgr.DescribeAction(ctx, "guest", "myWeather/forecast")
	require.NoError(t, err)
	assert.Equal(t, "guest/myWeather", d.Binding)
	want := ir.MustParameterSet(
		ir.P("units", ir.String("metric")),
		ir.P("region", ir.String("eu")),
		ir.P("days", ir.Int(3)),
	)
	assert.True(t, d.Parameters.Equal(want), "got %v", d.Parameters)

	// Applying again updates in place.
	_, err = m.Apply(ctx, mgr, "other", retry.None())
	require.NoError(t, err)
	p, err := mgr.DescribePackage(ctx, "guest", "weather")
	require.NoError(t, err)
	assert.Equal(t, "0.0.2", p.Version)
}

func TestApply_DefaultNamespaceAndErrors(t *testing.T) {
	ctx := context.Background()
	mgr := entity.NewManager(memory.NewStore())

	m, err := ParseYAML("m.yaml", []byte(`
bindings:
  b:
    package: missing
`))
	require.NoError(t, err)

	_, err = m.Apply(ctx, mgr, "team", retry.None())
	require.Error(t, err)
	assert.True(t, ir.IsNotFound(err))
	assert.Contains(t, err.Error(), "m.yaml:4:")

	m, err = ParseYAML("m.yaml", []byte("packages: {p: {}}"))
	require.NoError(t, err)
	res, err := m.Apply(ctx, mgr, "team", retry.None())
	require.NoError(t, err)
	assert.Equal(t, []string{"team/p"}, res.Packages)
}
