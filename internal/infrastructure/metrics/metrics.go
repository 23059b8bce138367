// Package metrics exposes storefront-auth counters and latency histograms
// in the Prometheus exposition format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds the service's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so callers don't need to
// branch on metrics.enabled.
type Metrics struct {
	AuthEvents   *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	MailDispatch *prometheus.CounterVec
	AuditDropped prometheus.Counter
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors, kept separate from the global default registry.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// NewMetrics creates and registers the storefront-auth collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_events_total",
				Help:      "Authentication outcomes by action, role and outcome",
			},
			[]string{"action", "role", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route pattern",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		MailDispatch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_dispatch_total",
				Help:      "Verification mail dispatches by outcome",
			},
			[]string{"outcome"},
		),
		AuditDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_dropped_total",
				Help:      "Audit entries dropped because the write queue was full",
			},
		),
	}

	reg.MustRegister(m.AuthEvents, m.HTTPRequests, m.HTTPDuration, m.MailDispatch, m.AuditDropped)
	return m
}

// Handler serves the exposition for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// AuthEvent counts one authentication outcome.
func (m *Metrics) AuthEvent(action, role, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(action, role, outcome).Inc()
}

// ObserveHTTP records one completed request. route is the chi route
// pattern, not the raw path, so label cardinality stays bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// MailDispatched counts a verification mail attempt ("sent" or "failed").
func (m *Metrics) MailDispatched(outcome string) {
	if m == nil {
		return
	}
	m.MailDispatch.WithLabelValues(outcome).Inc()
}

// AuditEntryDropped counts an audit entry lost to a full queue.
func (m *Metrics) AuditEntryDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}
