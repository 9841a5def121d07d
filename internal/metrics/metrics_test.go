package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nimbus/internal/adapters/memory"
	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/invoke"
	"github.com/roach88/nimbus/internal/ir"
	"github.com/roach88/nimbus/internal/resolve"
)

func TestObservers(t *testing.T) {
	m := New()

	m.ObserveResolution("bound", "ok", time.Millisecond)
	m.ObserveResolution("bound", "ok", time.Millisecond)
	m.ObserveResolution("", "invalid_name", 0)
	m.ObserveWrite("package", "put", "ok")
	m.ObserveActivation("literal", ir.StatusSuccess, 2*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions.WithLabelValues("bound", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("unclassified", "invalid_name")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.writes.WithLabelValues("package", "put", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("literal", ir.StatusSuccess)))
}

func TestWiredThroughComponents(t *testing.T) {
	ctx := context.Background()
	m := New()
	s := memory.NewStore()
	r := resolve.New(s, resolve.WithObserver(m))
	mgr := entity.NewManager(s, entity.WithObserver(m), entity.WithResolver(r))
	inv := invoke.New(r, s, invoke.WithObserver(m))

	_, err := mgr.CreatePackage(ctx, "guest", "weather", ir.Strings("units", "metric"), nil, false)
	require.NoError(t, err)
	_, err = mgr.CreateAction(ctx, "guest", "weather/fc", ir.Exec{}, nil, nil, false)
	require.NoError(t, err)
	_, err = mgr.CreateBinding(ctx, "guest", "mine", ir.EntityRef{Name: "weather"}, nil, nil, false)
	require.NoError(t, err)

	_, err = inv.Invoke(ctx, "guest", "mine/fc", nil)
	require.NoError(t, err)
	_, err = inv.Invoke(ctx, "guest", "mine/missing", nil)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("bound", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("bound", ir.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.writes.WithLabelValues("binding", "put", "ok")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.writes))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveWrite("action", "delete", "not_found")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `nimbus_entity_writes_total{kind="action",op="delete",outcome="not_found"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
