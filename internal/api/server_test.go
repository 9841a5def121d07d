package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/adapters/memory"
	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/invoke"
	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/logging"
	"github.com/roach88/nimbus/internal/metrics"
	"github.com/roach88/nimbus/internal/resolve"
	"github.com/roach88/nimbus/internal/testutil"
)

type fixture struct {
	handler http.Handler
	invoker *invoke.Invoker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStore()
	m := metrics.New()
	logger := logging.NewNop()
	resolver := resolve.New(st, resolve.WithObserver(m), resolve.WithLogger(logger))
	manager := entity.NewManager(st, entity.WithResolver(resolver), entity.WithObserver(m), entity.WithLogger(logger))
	clock := testutil.NewDeterministicClock()
	inv := invoke.New(resolver, st,
		invoke.WithClock(clock),
		invoke.WithNow(clock.Now),
		invoke.WithIDGenerator(testutil.NewFixedIDGenerator()),
		invoke.WithObserver(m),
		invoke.WithLogger(logger),
	)
	return &fixture{
		handler: NewHandler(manager, inv, st, WithMetrics(m.Handler()), WithLogger(logger)),
		invoker: inv,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

const base = "/api/v1/namespaces/guest"

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	rr := f.do(t, http.MethodPut, base+"/packages/weather",
		`{"parameters":[{"key":"units","value":"metric"},{"key":"region","value":"us"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodPut, base+"/actions/weather/forecast",
		`{"exec":{"kind":"echo"},"parameters":[{"key":"days","value":3}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodPut, base+"/packages/myWeather",
		`{"binding":{"namespace":"guest","name":"weather"},"parameters":[{"key":"region","value":"eu"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, ir.PlatformVersion, body["version"])
}

func TestGetPackage_BindingMergesTarget(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodGet, base+"/packages/myWeather", "")
	require.Equal(t, http.StatusOK, rr.Code)

	desc := decode[entity.PackageDescription](t, rr)
	require.NotNil(t, desc.Binding)
	assert.Equal(t, "guest/weather", desc.Binding.String())
	assert.True(t, desc.Parameters.Equal(ir.Strings("units", "metric", "region", "eu")), "got %v", desc.Parameters)
	assert.Equal(t, []string{"forecast"}, desc.Actions)
}

func TestListPackages(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodGet, base+"/packages", "")
	require.Equal(t, http.StatusOK, rr.Code)

	listing := decode[packageListing](t, rr)
	require.Len(t, listing.Packages, 1)
	assert.Equal(t, "weather", listing.Packages[0].Name)
	require.Len(t, listing.Bindings, 1)
	assert.Equal(t, "myWeather", listing.Bindings[0].Name)
}

func TestGetAction_ThroughBinding(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodGet, base+"/actions/myWeather/forecast", "")
	require.Equal(t, http.StatusOK, rr.Code)

	desc := decode[entity.ActionDescription](t, rr)
	assert.Equal(t, "guest/weather/forecast", desc.Path)
	assert.Equal(t, "guest/myWeather", desc.Binding)
	assert.Equal(t, "bound", desc.Kind)
}

func TestInvoke_BoundRecordsBinding(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodPost, base+"/actions/myWeather/forecast", `{"days":5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	act := decode[ir.Activation](t, rr)
	binding, ok := act.Binding()
	require.True(t, ok)
	assert.Equal(t, "guest/myWeather", binding)
	assert.Equal(t, ir.StatusSuccess, act.Response.Status)
	assert.Equal(t, ir.Object{
		"units":  ir.String("metric"),
		"region": ir.String("eu"),
		"days":   ir.Int(5),
	}, act.Response.Result)

	rr = f.do(t, http.MethodGet, base+"/activations/"+act.ActivationID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	stored := decode[ir.Activation](t, rr)
	assert.Equal(t, act.Digest, stored.Digest)
}

func TestInvoke_LiteralHasNoBinding(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodPost, base+"/actions/weather/forecast", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	act := decode[ir.Activation](t, rr)
	_, ok := act.Binding()
	assert.False(t, ok)
	assert.NotContains(t, rr.Body.String(), `"binding"`)
}

func TestInvoke_NonBlockingQueues(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodPost, base+"/actions/myWeather/forecast?blocking=false", "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	assert.Equal(t, "00000000000000000000000000000001", decode[map[string]string](t, rr)["activationId"])
	assert.Equal(t, 1, f.invoker.Pending())
}

func TestDefaultNamespacePlaceholder(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodGet, "/api/v1/namespaces/_/packages/weather", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "guest", decode[entity.PackageDescription](t, rr).Namespace)
}

func TestListActivations(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/actions/weather/forecast", "").Code)
	}

	rr := f.do(t, http.MethodGet, base+"/activations?limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]ir.Activation](t, rr), 2)

	rr = f.do(t, http.MethodGet, base+"/activations?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeletePackage(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodDelete, base+"/packages/weather", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, base+"/packages/myWeather", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, base+"/actions/weather/forecast", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, base+"/packages/weather", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, base+"/packages/weather", "").Code)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing package", http.MethodGet, base + "/packages/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"missing action", http.MethodPost, base + "/actions/weather/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"create existing", http.MethodPut, base + "/packages/weather", "{}", http.StatusConflict, "CONFLICT"},
		{"package over binding", http.MethodPut, base + "/packages/myWeather?overwrite=true", "{}", http.StatusConflict, "CONFLICT"},
		{"binding to binding", http.MethodPut, base + "/packages/b2",
			`{"binding":{"namespace":"guest","name":"myWeather"}}`, http.StatusBadRequest, "INVALID_NAME"},
		{"action in binding", http.MethodPut, base + "/actions/myWeather/x", "{}", http.StatusBadRequest, "INVALID_NAME"},
		{"bad json", http.MethodPut, base + "/packages/p", "{", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"duplicate package parameter", http.MethodPut, base + "/packages/dup",
			`{"parameters":{"p1":"a","p1":"b"}}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"duplicate action parameter", http.MethodPut, base + "/actions/weather/dup",
			`{"exec":{"kind":"echo"},"parameters":{"days":1,"days":2}}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"duplicate argument", http.MethodPost, base + "/actions/weather/forecast", `{"days":1,"days":2}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"fractional argument", http.MethodPost, base + "/actions/weather/forecast", `{"days":1.5}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"missing activation", http.MethodGet, base + "/activations/abc", "", http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, rr).Code)
		})
	}
}

func TestPutPackage_DuplicateObjectKeyNotStored(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPut, base+"/packages/dup", `{"parameters":{"p1":"a","p1":"b"}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Contains(t, decode[errorBody](t, rr).Error, `duplicate key "p1"`)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, base+"/packages/dup", "").Code)
}

func TestOverwriteBumpsVersion(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rr := f.do(t, http.MethodPut, base+"/packages/weather?overwrite=true",
		`{"parameters":[{"key":"units","value":"imperial"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0.0.2", decode[ir.Package](t, rr).Version)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/actions/myWeather/forecast", "").Code)

	rr := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `nimbus_activations_total{kind="bound",status="success"} 1`)
}

func TestStatusFor(t *testing.T) {
	status, code := statusFor(invoke.ErrStopped)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, codeInternal, code)

	status, _ = statusFor(io.EOF)
	assert.Equal(t, http.StatusInternalServerError, status)
}
