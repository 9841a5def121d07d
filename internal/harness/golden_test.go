package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/ir"
)

func TestGolden_Scenarios(t *testing.T) {
	paths, err := Discover("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot_Canonical(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Step: 0, Type: EventActivation, Target: "hello", Path: "guest/hello",
			Parameters: ir.Strings("b", "2", "a", "1"), Status: ir.StatusSuccess,
			ActivationID: "00000000000000000000000000000001", Seq: 1},
		{Step: 1, Type: EventError, Target: "x", Code: "NOT_FOUND"},
	}

	data, err := MarshalSnapshot("snap", result)
	require.NoError(t, err)

	want := `{"scenario_name":"snap","trace":[` +
		`{"activation_id":"00000000000000000000000000000001","parameters":[{"key":"b","value":"2"},{"key":"a","value":"1"}],"path":"guest/hello","seq":1,"status":"success","step":0,"target":"hello","type":"activation"},` +
		`{"code":"NOT_FOUND","step":1,"target":"x","type":"error"}]}`
	assert.Equal(t, want, string(data))
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/literal_and_top_level.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, s.Name, result))
}
