// Package metrics registers and exposes Prometheus instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a service
type Metrics struct {
	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Realtime channel metrics
	websocketConnections prometheus.Gauge
	eventsRelayedTotal   *prometheus.CounterVec
	eventsDroppedTotal   *prometheus.CounterVec

	// Call metrics
	callsActive     prometheus.Gauge
	callsTotal      *prometheus.CounterVec
	callsDuration   prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Current number of in-flight HTTP requests",
				ConstLabels: labels,
			},
		),
		websocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Current number of open realtime channels",
				ConstLabels: labels,
			},
		),
		eventsRelayedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "relay_events_total",
				Help:        "Total number of events relayed to a recipient",
				ConstLabels: labels,
			},
			[]string{"event"},
		),
		eventsDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "relay_events_dropped_total",
				Help:        "Total number of events dropped because the target was offline",
				ConstLabels: labels,
			},
			[]string{"event"},
		),
		callsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "calls_active",
				Help:        "Current number of non-ended call sessions",
				ConstLabels: labels,
			},
		),
		callsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total call sessions by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"}, // answered, unanswered, aborted
		),
		callsDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "call_duration_seconds",
				Help:        "Duration of call sessions from ring to end",
				ConstLabels: labels,
				Buckets:     []float64{5, 15, 30, 60, 180, 600, 1800, 3600},
			},
		),
	}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// HTTPRequestStarted marks a request as in flight
func (m *Metrics) HTTPRequestStarted() {
	m.httpRequestsInFlight.Inc()
}

// HTTPRequestFinished marks a request as no longer in flight
func (m *Metrics) HTTPRequestFinished() {
	m.httpRequestsInFlight.Dec()
}

// ConnectionOpened records a new realtime channel
func (m *Metrics) ConnectionOpened() {
	m.websocketConnections.Inc()
}

// ConnectionClosed records a closed realtime channel
func (m *Metrics) ConnectionClosed() {
	m.websocketConnections.Dec()
}

// EventRelayed records an event delivered to a recipient
func (m *Metrics) EventRelayed(event string) {
	m.eventsRelayedTotal.WithLabelValues(event).Inc()
}

// EventDropped records an event dropped for an offline target
func (m *Metrics) EventDropped(event string) {
	m.eventsDroppedTotal.WithLabelValues(event).Inc()
}

// CallStarted records a new ringing session
func (m *Metrics) CallStarted() {
	m.callsActive.Inc()
}

// CallEnded records a finished session with its outcome and total duration
func (m *Metrics) CallEnded(outcome string, duration time.Duration) {
	m.callsActive.Dec()
	m.callsTotal.WithLabelValues(outcome).Inc()
	m.callsDuration.Observe(duration.Seconds())
}
