package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/ir"
)

const weatherManifest = "../manifest/testdata/weather.yaml"

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestApply_WritesEntities(t *testing.T) {
	s := newSession(t)

	env := decode[ApplySummary](t, s.must("--format", "json", "apply", weatherManifest))
	assert.Equal(t, []string{"guest/weather"}, env.Data.Packages)
	assert.ElementsMatch(t, []string{"guest/weather/forecast", "guest/hello"}, env.Data.Actions)
	assert.Equal(t, []string{"guest/myWeather"}, env.Data.Bindings)

	out := s.must("invoke", "myWeather/forecast", "--result")
	assert.Equal(t, `{"days":3,"region":"eu","units":"metric"}`+"\n", out)
}

func TestApply_IsIdempotent(t *testing.T) {
	s := newSession(t)
	s.must("apply", weatherManifest)

	out := s.must("apply", weatherManifest)
	assert.Contains(t, out, "ok: applied")
	assert.Contains(t, out, "(1 packages, 2 actions, 1 bindings)")
}

func TestApply_DryRunDoesNotOpenBackend(t *testing.T) {
	out, err := execute(t, "--backend", "redis", "--redis-addr", "127.0.0.1:1", "apply", weatherManifest, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: validated")
	assert.Contains(t, out, "  binding myWeather\n")
	assert.Contains(t, out, "  action  weather/forecast\n")
}

func TestApply_InvalidManifest(t *testing.T) {
	path := writeManifest(t, "packages:\n  weather:\n    color: blue\n")

	out, err := execute(t, "--backend", "memory", "apply", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "Error [E007]")
	assert.Contains(t, out, "unknown field")
}

func TestApply_MissingFile(t *testing.T) {
	_, err := execute(t, "--backend", "memory", "apply", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestApply_RejectedDeclaration(t *testing.T) {
	path := writeManifest(t, "bindings:\n  orphan:\n    package: missing\n")

	out, err := execute(t, "--backend", "memory", "apply", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, ir.IsNotFound(err))
	assert.Contains(t, out, "Error [E002]")
}
