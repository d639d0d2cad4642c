package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileCounters(t *testing.T) {
	m := NewReconcile()
	m.Commits.WithLabelValues("create").Inc()
	m.Commits.WithLabelValues("create").Inc()
	m.Failures.WithLabelValues("update").Inc()
	m.Dropped.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commits.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := NewReconcile(), NewReconcile()
	a.Dropped.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Dropped))
}

func TestHandler(t *testing.T) {
	m := NewReconcile()
	m.Reloads.WithLabelValues("ok").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `timegrid_reconcile_reloads_total{result="ok"} 1`)
}
