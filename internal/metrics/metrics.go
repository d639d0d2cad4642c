// Package metrics exposes reconciler counters through Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "timegrid"

// Reconcile holds the counters of one reconciler. Each instance owns its
// registry so tests and multiple programs do not collide.
type Reconcile struct {
	registry *prometheus.Registry

	Commits  *prometheus.CounterVec
	Failures *prometheus.CounterVec
	Reloads  *prometheus.CounterVec
	Dropped  prometheus.Counter
	InFlight prometheus.Gauge
	CallTime *prometheus.HistogramVec
}

// NewReconcile registers a fresh set of counters.
func NewReconcile() *Reconcile {
	m := &Reconcile{
		registry: prometheus.NewRegistry(),
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "commits_total",
			Help:      "Requests applied optimistically to the store.",
		}, []string{"op"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "failures_total",
			Help:      "Persistence calls that failed and triggered a reload.",
		}, []string{"op"}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "reloads_total",
			Help:      "Window reloads after a failed write.",
		}, []string{"result"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "dropped_total",
			Help:      "Requests dropped because their window or record was gone.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "in_flight",
			Help:      "Persistence calls not yet resolved.",
		}),
		CallTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "call_duration_seconds",
			Help:      "Persistence call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.Commits, m.Failures, m.Reloads, m.Dropped, m.InFlight, m.CallTime)
	return m
}

// Registry returns the registry holding the counters.
func (m *Reconcile) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterRuntime adds Go runtime and process collectors, for a served endpoint.
func (m *Reconcile) RegisterRuntime() {
	m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler serves the registry in the Prometheus text format.
func (m *Reconcile) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
