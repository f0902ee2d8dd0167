// Package metrics exposes Prometheus collectors for the workflow engine:
// move outcomes and latency, column renumbering, conflict retries and HTTP
// traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qms"

// Metrics holds every collector registered by the service.
type Metrics struct {
	registry *prometheus.Registry

	movesTotal      *prometheus.CounterVec
	moveDuration    *prometheus.HistogramVec
	renumbersTotal  prometheus.Counter
	conflictRetries prometheus.Counter
	subscribers     prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a registry with the process and Go runtime collectors plus the
// workflow and HTTP collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		movesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Total number of record moves by outcome.",
		}, []string{"outcome"}),
		moveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "move_duration_seconds",
			Help:      "Record move duration in seconds, retries included.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"outcome"}),
		renumbersTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "column_renumbers_total",
			Help:      "Total number of column renumbering passes.",
		}),
		conflictRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "move_conflict_retries_total",
			Help:      "Total number of moves retried after an ordering conflict.",
		}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "board_subscribers",
			Help:      "Number of connected board event subscribers.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// MoveFinished records a completed move attempt sequence.
func (m *Metrics) MoveFinished(outcome string, d time.Duration) {
	m.movesTotal.WithLabelValues(outcome).Inc()
	m.moveDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ColumnRenumbered counts a renumbering pass.
func (m *Metrics) ColumnRenumbered() {
	m.renumbersTotal.Inc()
}

// ConflictRetried counts a move retried after a conflict.
func (m *Metrics) ConflictRetried() {
	m.conflictRetries.Inc()
}

// SubscriberAdded and SubscriberRemoved track board event subscribers.
func (m *Metrics) SubscriberAdded()   { m.subscribers.Inc() }
func (m *Metrics) SubscriberRemoved() { m.subscribers.Dec() }

// ObserveHTTP records one served request. route is the mux pattern, not the
// raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
