package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/ir"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_BoundInvokeRecordsProvenance(t *testing.T) {
	s := mustParse(t, `
name: provenance
description: bound and unbound invocations of one action
steps:
  - package: weather
    parameters: {units: metric, region: us}
  - action: weather/forecast
  - bind: myWeather
    to: weather
    parameters: {region: eu}
  - invoke: myWeather/forecast
  - invoke: weather/forecast
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)

	bound := result.Trace[0]
	assert.Equal(t, EventActivation, bound.Type)
	assert.Equal(t, "guest/weather/forecast", bound.Path)
	assert.Equal(t, "guest/myWeather", bound.Binding)
	assert.True(t, bound.Parameters.Equal(ir.Strings("units", "metric", "region", "eu")))
	assert.Equal(t, ir.StatusSuccess, bound.Status)
	assert.Equal(t, int64(1), bound.Seq)

	literal := result.Trace[1]
	assert.Equal(t, "guest/weather/forecast", literal.Path)
	assert.Empty(t, literal.Binding)
	assert.True(t, literal.Parameters.Equal(ir.Strings("units", "metric", "region", "us")))
	assert.Equal(t, int64(2), literal.Seq)
	assert.NotEqual(t, bound.ActivationID, literal.ActivationID)
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/bound_invoke.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ParameterMismatchFails(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: expected parameters in the wrong order
steps:
  - package: p
    parameters: {a: 1, b: 2}
  - action: p/x
  - invoke: p/x
    expect:
      parameters: {b: 2, a: 1}
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 2 (invoke p/x)")
	assert.Contains(t, result.Errors[0], `parameters: expected [{"key":"b","value":2},{"key":"a","value":1}]`)
}

func TestRun_BindingExpectations(t *testing.T) {
	s := mustParse(t, `
name: binding-expectations
description: wrong binding and unexpected binding are both reported
steps:
  - package: p
  - action: p/x
  - bind: b
    to: p
  - invoke: b/x
    expect:
      binding: guest/other
  - invoke: b/x
    expect:
      unbound: true
  - invoke: p/x
    expect:
      binding: guest/b
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `binding: expected "guest/other", got "guest/b"`)
	assert.Contains(t, result.Errors[1], `binding: expected none, got "guest/b"`)
	assert.Contains(t, result.Errors[2], `binding: expected "guest/b", got ""`)
}

func TestRun_ErrorExpectations(t *testing.T) {
	s := mustParse(t, `
name: errors
description: unexpected errors, missing errors and wrong codes fail the run
steps:
  - invoke: missing/x
  - action: a
    expect:
      error: CONFLICT
  - invoke: nope
    expect:
      error: INVALID_NAME
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "step 0 (invoke missing/x): NOT_FOUND")
	assert.Contains(t, result.Errors[1], "expected error CONFLICT, got success")
	assert.Contains(t, result.Errors[2], "expected error INVALID_NAME, got NOT_FOUND")
	assert.Empty(t, result.Trace)
}

func TestRun_ExecutorKinds(t *testing.T) {
	s := mustParse(t, `
name: kinds
description: fail and crash executors map to activation statuses
steps:
  - action: ok
  - action: bad
    kind: fail
  - action: boom
    kind: crash
  - action: unknown
    kind: python
  - invoke: ok
    expect: {status: success}
  - invoke: bad
    expect: {status: action error}
  - invoke: boom
    expect: {status: internal error}
  - invoke: unknown
    expect: {error: INVALID_ARGUMENT}
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Activations(), 3)
}

func TestRun_Manifest(t *testing.T) {
	s, err := LoadScenario("testdata/manifest_scenario.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "guest/myWeather", result.Trace[0].Binding)
}

func TestRun_ManifestError(t *testing.T) {
	s := mustParse(t, `
name: bad-manifest
description: a manifest with an unsupported extension
manifest: testdata/manifests/weather.json
steps:
  - action: a
`)

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load manifest")
}

func TestRun_AssertionsReported(t *testing.T) {
	s := mustParse(t, `
name: assertions
description: failing assertions are added to the result
steps:
  - package: p
    parameters: {a: 1}
  - action: p/x
  - invoke: p/x
assertions:
  - type: trace_count
    path: guest/p/x
    count: 2
  - type: package_parameters
    package: p
    parameters: {a: 2}
  - type: activation_count
    count: 1
`)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "trace_count")
	assert.Contains(t, result.Errors[1], "package_parameters")
}
