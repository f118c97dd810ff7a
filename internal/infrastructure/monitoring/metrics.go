package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Workspace metrics
	WorkspacesActive prometheus.Gauge
	WorkspacesTotal  prometheus.Counter
	Builds           *prometheus.CounterVec
	BuildDuration    prometheus.Histogram
	HandlesLive      prometheus.Gauge
	Snapshots        prometheus.Counter
	LogEntries       *prometheus.CounterVec

	// Rewrite metrics
	References    *prometheus.CounterVec
	ParseFailures prometheus.Counter

	// Protocol metrics
	ProtocolMessages *prometheus.CounterVec
	ProtocolDropped  *prometheus.CounterVec

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections *prometheus.GaugeVec
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveWorkspaces  int64   `json:"active_workspaces"`
	ActiveConnections int64   `json:"active_connections"`
	TotalDuration     float64 `json:"total_duration_seconds"` // sum of all request durations
	RequestCount      int64   `json:"request_count"`          // count for averaging
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector with its own registry, so several
// collectors can live in one process (tests, embedded servers).
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry registers every metric on reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nuitester_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nuitester_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nuitester_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nuitester_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Workspace metrics
		WorkspacesActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "nuitester_workspaces_active",
				Help: "Number of open workspaces",
			},
		),
		WorkspacesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "nuitester_workspaces_total",
				Help: "Total number of workspaces created",
			},
		),
		Builds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nuitester_builds_total",
				Help: "Preview builds by outcome",
			},
			[]string{"status"},
		),
		BuildDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nuitester_build_duration_seconds",
				Help:    "Preview build duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		HandlesLive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "nuitester_resource_handles_live",
				Help: "Resource handles currently allocated across workspaces",
			},
		),
		Snapshots: f.NewCounter(
			prometheus.CounterOpts{
				Name: "nuitester_snapshots_total",
				Help: "Total number of version snapshots taken",
			},
		),
		LogEntries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nuitester_log_entries_total",
				Help: "Console log entries by type",
			},
			[]string{"type"},
		),

		// Rewrite metrics
		References: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nuitester_rewrite_references_total",
				Help: "References seen by the document rewriter by status",
			},
			[]string{"status"},
		),
		ParseFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "nuitester_rewrite_parse_failures_total",
				Help: "Entry documents served unmodified because rewriting failed",
			},
		),

		// Protocol metrics
		ProtocolMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nuitester_protocol_messages_total",
				Help: "Bridge protocol messages by direction and kind",
			},
			[]string{"direction", "kind"},
		),
		ProtocolDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nuitester_protocol_dropped_total",
				Help: "Inbound bridge messages dropped by reason",
			},
			[]string{"reason"},
		),

		// Service metrics
		ServiceCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nuitester_service_calls_total",
				Help: "Total number of service calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nuitester_service_duration_seconds",
				Help:    "Service call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),

		// WebSocket metrics
		WSConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nuitester_ws_connections",
				Help: "Number of active WebSocket connections by endpoint",
			},
			[]string{"endpoint"},
		),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nuitester_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "nuitester_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordBuild records one preview build
func (m *Metrics) RecordBuild(status string, duration time.Duration) {
	m.Builds.WithLabelValues(status).Inc()
	m.BuildDuration.Observe(duration.Seconds())
}

// AddHandles moves the live handle gauge by delta
func (m *Metrics) AddHandles(delta int) {
	m.HandlesLive.Add(float64(delta))
}

// RecordRewrite records the reference counts of one rewrite
func (m *Metrics) RecordRewrite(resolved, unresolved, skipped int, parseFailed bool) {
	m.References.WithLabelValues("resolved").Add(float64(resolved))
	m.References.WithLabelValues("unresolved").Add(float64(unresolved))
	m.References.WithLabelValues("skipped").Add(float64(skipped))
	if parseFailed {
		m.ParseFailures.Inc()
	}
}

// RecordProtocolMessage records a bridge message
func (m *Metrics) RecordProtocolMessage(direction, kind string) {
	m.ProtocolMessages.WithLabelValues(direction, kind).Inc()
}

// RecordProtocolDrop records a dropped inbound message
func (m *Metrics) RecordProtocolDrop(reason string) {
	m.ProtocolDropped.WithLabelValues(reason).Inc()
}

// RecordLogEntry records a console log entry
func (m *Metrics) RecordLogEntry(entryType string) {
	m.LogEntries.WithLabelValues(entryType).Inc()
}

// IncSnapshots increments the snapshot counter
func (m *Metrics) IncSnapshots() {
	m.Snapshots.Inc()
}

// SetWorkspacesActive sets the number of open workspaces
func (m *Metrics) SetWorkspacesActive(count int) {
	m.WorkspacesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveWorkspaces = int64(count)
	m.mu.Unlock()
}

// IncWorkspacesTotal increments the total workspaces counter
func (m *Metrics) IncWorkspacesTotal() {
	m.WorkspacesTotal.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections(endpoint string) {
	m.WSConnections.WithLabelValues(endpoint).Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections(endpoint string) {
	m.WSConnections.WithLabelValues(endpoint).Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}
