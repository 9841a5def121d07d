package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/ir"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 3, Type: EventActivation, Target: "myWeather/forecast", Path: "guest/weather/forecast",
			Binding: "guest/myWeather", Parameters: ir.Strings("units", "metric", "region", "eu"), Seq: 1},
		{Step: 4, Type: EventError, Target: "nope/x", Code: "NOT_FOUND"},
		{Step: 5, Type: EventActivation, Target: "hello", Path: "guest/hello", Seq: 2},
		{Step: 6, Type: EventActivation, Target: "weather/forecast", Path: "guest/weather/forecast",
			Parameters: ir.Strings("units", "metric", "region", "us"), Seq: 3},
	}
}

func params(t *testing.T, kv ...string) *Params {
	t.Helper()
	p := Params(ir.Strings(kv...))
	return &p
}

func count(n int) *int { return &n }

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"path only", Assertion{Path: "guest/hello"}, true},
		{"via binding", Assertion{Path: "guest/weather/forecast", Binding: "guest/myWeather"}, true},
		{"wrong binding", Assertion{Path: "guest/weather/forecast", Binding: "guest/other"}, false},
		{"parameter subset", Assertion{Path: "guest/weather/forecast", Parameters: params(t, "region", "us")}, true},
		{"binding and parameters from different events", Assertion{
			Path: "guest/weather/forecast", Binding: "guest/myWeather", Parameters: params(t, "region", "us"),
		}, false},
		{"missing path", Assertion{Path: "guest/nothing"}, false},
		{"error events never match", Assertion{Path: ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertTraceContains
			err := assertTraceContains(trace, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertTraceContains, ae.Type)
			assert.Equal(t, "not found in trace", ae.Actual)
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Paths: []string{"guest/weather/forecast", "guest/hello"}}))

	err := assertTraceOrder(trace, Assertion{Paths: []string{"guest/hello", "guest/weather/forecast"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "guest/hello (pos 3) should be before guest/weather/forecast (pos 1)")

	err = assertTraceOrder(trace, Assertion{Paths: []string{"guest/hello", "guest/missing"}})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "missing path: guest/missing", ae.Actual)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Path: "guest/weather/forecast", Count: count(2)}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Path: "guest/missing", Count: count(0)}))

	err := assertTraceCount(trace, Assertion{Path: "guest/hello", Count: count(2)})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 activations", ae.Actual)
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 activations of guest/hello",
		Actual:   "1 activations",
		Trace:    sampleTrace(),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 activations of guest/hello")
	assert.Contains(t, msg, "[3] myWeather/forecast -> guest/weather/forecast via guest/myWeather")
	assert.Contains(t, msg, "[4] nope/x NOT_FOUND")
}

func TestMatchParams(t *testing.T) {
	got := ir.MustParameterSet(ir.P("n", ir.Int(1)), ir.P("s", ir.String("x")))

	assert.True(t, matchParams(got, nil))
	assert.True(t, matchParams(got, ir.MustParameterSet(ir.P("n", ir.Int(1)))))
	assert.False(t, matchParams(got, ir.MustParameterSet(ir.P("n", ir.String("1")))))
	assert.False(t, matchParams(got, ir.MustParameterSet(ir.P("m", ir.Int(1)))))
}
