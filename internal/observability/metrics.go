package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	trackerCalls  *prometheus.CounterVec
	notifications *prometheus.CounterVec
	relayEvents   *prometheus.CounterVec
	relayClients  prometheus.Gauge
	activeDesks   prometheus.Gauge
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_errors_total", Help: "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		trackerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tracker_calls_total", Help: "Issue tracker calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total", Help: "Notifications by kind and delivering tier.",
		}, []string{"kind", "tier"}),
		relayEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_events_total", Help: "Relay events by kind.",
		}, []string{"kind"}),
		relayClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "relay_clients", Help: "Connected event stream clients.",
		}),
		activeDesks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "desk_sessions", Help: "Open desk sessions.",
		}),
	}
	m.registry.MustRegister(m.requests, m.requestTime, m.errors, m.trackerCalls,
		m.notifications, m.relayEvents, m.relayClients, m.activeDesks)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordTrackerCall counts one tracker request.
func (m *Metrics) RecordTrackerCall(op, outcome string) {
	if m == nil {
		return
	}
	m.trackerCalls.WithLabelValues(op, outcome).Inc()
}

// RecordNotification counts a delivered notification.
func (m *Metrics) RecordNotification(kind, tier string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, tier).Inc()
}

// RecordRelayEvent counts an ingested or streamed relay event.
func (m *Metrics) RecordRelayEvent(kind string) {
	if m == nil {
		return
	}
	m.relayEvents.WithLabelValues(kind).Inc()
}

// SetRelayClients reports the connected stream clients.
func (m *Metrics) SetRelayClients(n int) {
	if m == nil {
		return
	}
	m.relayClients.Set(float64(n))
}

// SetActiveDesks reports the open desk sessions.
func (m *Metrics) SetActiveDesks(n int) {
	if m == nil {
		return
	}
	m.activeDesks.Set(float64(n))
}
