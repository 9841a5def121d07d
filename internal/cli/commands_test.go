package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/ir"
)

// envelope decodes a JSON CLIResponse with a typed payload.
type envelope[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decode[T any](t *testing.T, out string) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal([]byte(out), &env), "output: %s", out)
	return env
}

// session runs commands against one SQLite file.
type session struct {
	t    *testing.T
	args []string
}

func newSession(t *testing.T) *session {
	return &session{t: t, args: sqliteArgs(t)}
}

func (s *session) run(args ...string) (string, error) {
	s.t.Helper()
	return execute(s.t, append(append([]string{}, s.args...), args...)...)
}

func (s *session) must(args ...string) string {
	s.t.Helper()
	out, err := s.run(args...)
	require.NoError(s.t, err, "nimbus %v: %s", args, out)
	return out
}

// seedWeather creates the weather package, its forecast action and the
// myWeather binding.
func seedWeather(s *session) {
	s.must("package", "create", "weather", "-p", "units", "metric", "-p", "region", "us")
	s.must("action", "create", "weather/forecast", "-p", "days", "3")
	s.must("package", "bind", "weather", "myWeather", "-p", "region", "eu", "-p", "apikey", "k1")
}

func TestPackageCommands_CreateBindList(t *testing.T) {
	s := newSession(t)

	out := s.must("package", "create", "weather", "-p", "units", "metric", "-a", "owner", "ops")
	assert.Contains(t, out, "ok: created package /guest/weather")

	out = s.must("package", "bind", "weather", "myWeather", "-p", "region", "eu")
	assert.Contains(t, out, "ok: created binding /guest/myWeather to /guest/weather")

	out = s.must("package", "list")
	assert.Contains(t, out, "  /guest/weather\n")
	assert.Contains(t, out, "  /guest/myWeather -> /guest/weather\n")

	env := decode[PackageListing](t, s.must("--format", "json", "package", "list"))
	assert.Equal(t, "ok", env.Status)
	require.Len(t, env.Data.Packages, 1)
	require.Len(t, env.Data.Bindings, 1)
	assert.Equal(t, ir.EntityRef{Namespace: "guest", Name: "weather"}, env.Data.Bindings[0].Target)
}

func TestPackageGet_BindingMergesTargetParameters(t *testing.T) {
	s := newSession(t)
	seedWeather(s)

	out := s.must("package", "get", "myWeather")
	assert.Contains(t, out, "package /guest/myWeather")
	assert.Contains(t, out, "binding: /guest/weather\n")
	assert.Contains(t, out, "  region: \"eu\"\n")
	assert.Contains(t, out, "  units: \"metric\"\n")
	assert.Contains(t, out, "actions: forecast\n")

	env := decode[entity.PackageDescription](t, s.must("--format", "json", "package", "get", "myWeather"))
	want := ir.Strings("units", "metric", "region", "eu", "apikey", "k1")
	assert.True(t, env.Data.Parameters.Equal(want), "got %v", env.Data.Parameters)
}

func TestPackageUpdate_ReplacesParameters(t *testing.T) {
	s := newSession(t)
	s.must("package", "create", "weather", "-p", "units", "metric")

	_, err := s.run("package", "create", "weather")
	require.Error(t, err)
	assert.True(t, ir.IsConflict(err))

	s.must("package", "update", "weather", "-p", "units", "imperial")
	env := decode[entity.PackageDescription](t, s.must("--format", "json", "package", "get", "weather"))
	v, ok := env.Data.Parameters.Get("units")
	require.True(t, ok)
	assert.Equal(t, ir.String("imperial"), v)
	assert.Equal(t, "0.0.2", env.Data.Version)
}

func TestActionGet_ThroughBinding(t *testing.T) {
	s := newSession(t)
	seedWeather(s)

	env := decode[entity.ActionDescription](t, s.must("--format", "json", "action", "get", "myWeather/forecast"))
	assert.Equal(t, "bound", env.Data.Kind)
	assert.Equal(t, "guest/myWeather", env.Data.Binding)
	assert.Equal(t, "guest/weather/forecast", env.Data.Path)
	want := ir.MustParameterSet(
		ir.P("units", ir.String("metric")),
		ir.P("region", ir.String("eu")),
		ir.P("apikey", ir.String("k1")),
		ir.P("days", ir.Int(3)),
	)
	assert.True(t, env.Data.Parameters.Equal(want), "got %v", env.Data.Parameters)

	out := s.must("action", "get", "weather/forecast")
	assert.Contains(t, out, "resolution: literal\n")
	assert.NotContains(t, out, "binding:")
}

func TestActionList(t *testing.T) {
	s := newSession(t)
	seedWeather(s)
	s.must("action", "create", "hello")

	env := decode[[]ir.Action](t, s.must("--format", "json", "action", "list"))
	assert.Len(t, env.Data, 2)

	env = decode[[]ir.Action](t, s.must("--format", "json", "action", "list", "myWeather"))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "forecast", env.Data[0].Name)
	assert.Equal(t, "weather", env.Data[0].Package)
}

func TestInvoke_BoundActivationIsAnnotated(t *testing.T) {
	s := newSession(t)
	seedWeather(s)

	env := decode[ir.Activation](t, s.must("--format", "json", "invoke", "myWeather/forecast"))
	act := env.Data
	assert.True(t, act.Response.Success)
	assert.Equal(t, ir.StatusSuccess, act.Response.Status)

	b, ok := act.Binding()
	require.True(t, ok)
	assert.Equal(t, "guest/myWeather", b)
	assert.Equal(t, ir.Object{
		"units":  ir.String("metric"),
		"region": ir.String("eu"),
		"apikey": ir.String("k1"),
		"days":   ir.Int(3),
	}, act.Response.Result)
}

func TestInvoke_LiteralHasNoBinding(t *testing.T) {
	s := newSession(t)
	seedWeather(s)

	out := s.must("invoke", "weather/forecast", "-p", "days", "5")
	assert.Contains(t, out, "path: /guest/weather/forecast\n")
	assert.Contains(t, out, "status: success\n")
	assert.NotContains(t, out, "binding:")

	out = s.must("invoke", "weather/forecast", "--result")
	assert.Equal(t, `{"days":3,"region":"us","units":"metric"}`+"\n", out)
}

func TestInvoke_ArgumentsOverrideBinding(t *testing.T) {
	s := newSession(t)
	seedWeather(s)

	out := s.must("invoke", "myWeather/forecast", "-p", "region", "ap", "--result")
	assert.Equal(t, `{"apikey":"k1","days":3,"region":"ap","units":"metric"}`+"\n", out)
}

func TestInvoke_UnknownExecKind(t *testing.T) {
	s := newSession(t)
	s.must("action", "create", "broken", "--kind", "python")

	out, err := s.run("invoke", "broken")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, ir.IsInvalidArgument(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestActivationCommands(t *testing.T) {
	s := newSession(t)
	seedWeather(s)

	bound := decode[ir.Activation](t, s.must("--format", "json", "invoke", "myWeather/forecast")).Data
	s.must("invoke", "weather/forecast")

	list := decode[[]ir.Activation](t, s.must("--format", "json", "activation", "list"))
	require.Len(t, list.Data, 2)
	_, ok := list.Data[0].Binding()
	assert.False(t, ok, "newest activation is the unbound one")

	limited := decode[[]ir.Activation](t, s.must("--format", "json", "activation", "list", "--limit", "1"))
	assert.Len(t, limited.Data, 1)

	out := s.must("activation", "get", bound.ActivationID)
	assert.Contains(t, out, "binding: /guest/myWeather\n")
	assert.Contains(t, out, "activation "+bound.ActivationID)

	out = s.must("activation", "list")
	assert.Contains(t, out, bound.ActivationID+" guest/weather/forecast success via guest/myWeather")

	_, err := s.run("activation", "list", "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = s.run("activation", "get", "nope")
	require.Error(t, err)
	assert.True(t, ir.IsNotFound(err))
}

func TestEntityErrorsAreReported(t *testing.T) {
	s := newSession(t)
	seedWeather(s)

	tests := []struct {
		name string
		args []string
		code ir.ErrorCode
		cli  string
	}{
		{"missing package", []string{"invoke", "nowhere/forecast"}, ir.ErrCodeNotFound, ErrCodeNotFound},
		{"action in binding", []string{"action", "create", "myWeather/other"}, ir.ErrCodeInvalidName, ErrCodeInvalidName},
		{"binding to binding", []string{"package", "bind", "myWeather", "again"}, ir.ErrCodeInvalidName, ErrCodeInvalidName},
		{"name held by binding", []string{"package", "create", "myWeather"}, ir.ErrCodeConflict, ErrCodeConflict},
		{"package with actions", []string{"package", "delete", "weather"}, ir.ErrCodeConflict, ErrCodeConflict},
		{"bad target", []string{"invoke", "a/b/c/d"}, ir.ErrCodeInvalidName, ErrCodeInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, ir.CodeOf(err))
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.True(t, IsReported(err))
			assert.Contains(t, out, "Error ["+tt.cli+"]")
		})
	}
}

func TestEntityErrors_JSON(t *testing.T) {
	s := newSession(t)

	out, err := s.run("--format", "json", "package", "get", "missing")
	require.Error(t, err)
	env := decode[any](t, out)
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)
}

func TestDeleteFlow(t *testing.T) {
	s := newSession(t)
	seedWeather(s)

	s.must("package", "delete", "myWeather")
	_, err := s.run("invoke", "myWeather/forecast")
	require.Error(t, err)
	assert.True(t, ir.IsNotFound(err))

	s.must("action", "delete", "weather/forecast")
	out := s.must("package", "delete", "weather")
	assert.Contains(t, out, "ok: deleted package weather")

	env := decode[PackageListing](t, s.must("--format", "json", "package", "list"))
	assert.Empty(t, env.Data.Packages)
	assert.Empty(t, env.Data.Bindings)
}

func TestMalformedParamIsCommandError(t *testing.T) {
	_, err := execute(t, "--backend", "memory", "package", "create", "p", "--param", "novalue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid parameters")
}

func TestNamespaceFlag(t *testing.T) {
	s := newSession(t)
	s.must("-n", "team", "package", "create", "tools")

	env := decode[PackageListing](t, s.must("--format", "json", "-n", "team", "package", "list"))
	require.Len(t, env.Data.Packages, 1)
	assert.Equal(t, "team", env.Data.Packages[0].Namespace)

	env = decode[PackageListing](t, s.must("--format", "json", "package", "list"))
	assert.Empty(t, env.Data.Packages)
}
