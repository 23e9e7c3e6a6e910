// Package metrics provides Prometheus metrics for the engagement reward pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Label values used by the recorders below.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeDegraded  = "degraded"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Cycle metrics
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	commands      *prometheus.CounterVec
	commandQueue  prometheus.Gauge

	// Ingestion metrics
	fetchRequests    *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	rateLimitRetries prometheus.Counter
	recordsIngested  prometheus.Counter
	recordsRejected  *prometheus.CounterVec
	leaderboardSize  prometheus.Gauge

	// Persistence metrics
	persistenceErrors *prometheus.CounterVec

	// Ledger metrics
	signLatency    prometheus.Histogram
	signFailures   prometheus.Counter
	anchorFailures prometheus.Counter
	transfers      *prometheus.CounterVec
	faucetRequests *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "engageboard",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for all metric definitions
	auto := promauto.With(m.registry)
	if !m.enabled {
		auto = promauto.With(nil)
	}

	m.cycles = auto.NewCounterVec(m.counterOpts("cycles_total", "Distribution cycles by outcome"), []string{"command", "outcome"})
	m.cycleDuration = auto.NewHistogram(m.histogramOpts("cycle_duration_seconds", "Wall time of one command execution"))
	m.commands = auto.NewCounterVec(m.counterOpts("commands_total", "Commands submitted by source and result"), []string{"source", "result"})
	m.commandQueue = auto.NewGauge(m.gaugeOpts("command_queue_size", "Commands waiting to run"))

	m.fetchRequests = auto.NewCounterVec(m.counterOpts("fetch_requests_total", "Metrics source requests by HTTP status class"), []string{"status"})
	m.fetchLatency = auto.NewHistogram(m.histogramOpts("fetch_latency_seconds", "Latency of one metrics source request"))
	m.rateLimitRetries = auto.NewCounter(m.counterOpts("rate_limit_retries_total", "Requests retried after an upstream 429"))
	m.recordsIngested = auto.NewCounter(m.counterOpts("records_ingested_total", "Engagement records accepted at ingestion"))
	m.recordsRejected = auto.NewCounterVec(m.counterOpts("records_rejected_total", "Engagement records dropped at ingestion"), []string{"reason"})
	m.leaderboardSize = auto.NewGauge(m.gaugeOpts("leaderboard_participants", "Participants in the latest snapshot"))

	m.persistenceErrors = auto.NewCounterVec(m.counterOpts("persistence_errors_total", "Best-effort writes that failed"), []string{"operation"})

	m.signLatency = auto.NewHistogram(m.histogramOpts("sign_latency_seconds", "Time spent waiting for a leaderboard signature"))
	m.signFailures = auto.NewCounter(m.counterOpts("sign_failures_total", "Signing attempts that aborted a cycle"))
	m.anchorFailures = auto.NewCounter(m.counterOpts("anchor_failures_total", "Signatures that could not be anchored"))
	m.transfers = auto.NewCounterVec(m.counterOpts("transfers_total", "Reward transfers by status"), []string{"status"})
	m.faucetRequests = auto.NewCounterVec(m.counterOpts("faucet_requests_total", "Faucet top-ups by result"), []string{"result"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated by the process"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of live goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds"))
}

// RecordCycle counts one finished command execution.
func RecordCycle(command, outcome string, d time.Duration) {
	globalManager.cycles.WithLabelValues(command, outcome).Inc()
	globalManager.cycleDuration.Observe(d.Seconds())
}

// RecordCommand counts a command submission.
func RecordCommand(source, result string) {
	globalManager.commands.WithLabelValues(source, result).Inc()
}

// UpdateCommandQueueSize sets the number of pending commands.
func UpdateCommandQueueSize(n int) {
	globalManager.commandQueue.Set(float64(n))
}

// RecordFetch records one upstream request.
func RecordFetch(status string, d time.Duration) {
	globalManager.fetchRequests.WithLabelValues(status).Inc()
	globalManager.fetchLatency.Observe(d.Seconds())
}

// RecordRateLimitRetry counts a cooldown retry.
func RecordRateLimitRetry() {
	globalManager.rateLimitRetries.Inc()
}

// RecordRecordsIngested adds accepted records.
func RecordRecordsIngested(n int) {
	globalManager.recordsIngested.Add(float64(n))
}

// RecordRecordRejected counts one dropped record.
func RecordRecordRejected(reason string) {
	globalManager.recordsRejected.WithLabelValues(reason).Inc()
}

// UpdateLeaderboardSize sets the latest participant count.
func UpdateLeaderboardSize(n int) {
	globalManager.leaderboardSize.Set(float64(n))
}

// RecordPersistenceError counts a failed best-effort write.
func RecordPersistenceError(operation string) {
	globalManager.persistenceErrors.WithLabelValues(operation).Inc()
}

// RecordSignLatency observes signing time.
func RecordSignLatency(d time.Duration) {
	globalManager.signLatency.Observe(d.Seconds())
}

// RecordSignFailure counts a signing failure.
func RecordSignFailure() {
	globalManager.signFailures.Inc()
}

// RecordAnchorFailure counts a failed anchor.
func RecordAnchorFailure() {
	globalManager.anchorFailures.Inc()
}

// RecordTransfer counts a transfer outcome.
func RecordTransfer(status string) {
	globalManager.transfers.WithLabelValues(status).Inc()
}

// RecordFaucetRequest counts a faucet top-up.
func RecordFaucetRequest(result string) {
	globalManager.faucetRequests.WithLabelValues(result).Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}

// RefreshInterval is how often callers should refresh polled gauges.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
