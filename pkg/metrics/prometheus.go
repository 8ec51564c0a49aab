// Package metrics provides Prometheus metrics for the nilcore decision service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Compliance engine
	complianceScored      *prometheus.CounterVec
	complianceCritical    prometheus.Counter
	complianceFaults      *prometheus.CounterVec
	complianceOverrides   prometheus.Counter
	complianceLatency     prometheus.Histogram
	complianceValidations prometheus.Counter

	// FMV engine
	fmvCalculations *prometheus.CounterVec
	fmvRateLimited  prometheus.Counter
	fmvLatency      prometheus.Histogram
	cohortSize      prometheus.Gauge

	// Reconsideration and advisor
	reconsiderAttempts *prometheus.CounterVec
	notifications      *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryLatency *prometheus.HistogramVec

	// Recompute queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueue  prometheus.Counter
	queueDequeue  prometheus.Counter
	queueRejected prometheus.Counter
	queueDeduped  prometheus.Counter

	// Workers
	workerCount   prometheus.Gauge
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	errorsByComponent *prometheus.CounterVec

	systemGoroutines prometheus.Gauge
	systemMemory     prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry *prometheus.Registry //nolint:gochecknoglobals // service registry

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure rebuilds the global manager with opts on a fresh registry. Call it
// at startup, before metrics are recorded or the handler is mounted.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nilcore",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often gauges should be refreshed by the owner.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.complianceScored = m.counterVec("compliance_scored_total", "Compliance results produced, by risk tier", "tier")
	m.complianceCritical = m.counter("compliance_critical_total", "Compliance results forced red by a critical flag")
	m.complianceFaults = m.counterVec("compliance_scorer_faults_total", "Dimension scorer faults isolated to a zero score", "dimension")
	m.complianceOverrides = m.counter("compliance_overrides_total", "Officer overrides recorded")
	m.complianceLatency = m.histogram("compliance_latency_milliseconds", "Compliance scoring latency in milliseconds")
	m.complianceValidations = m.counter("compliance_validation_errors_total", "Compliance requests rejected for missing or malformed input")

	m.fmvCalculations = m.counterVec("fmv_calculations_total", "FMV calculations persisted, by trigger", "trigger")
	m.fmvRateLimited = m.counter("fmv_rate_limited_total", "FMV recalculations refused by the daily limit")
	m.fmvLatency = m.histogram("fmv_latency_milliseconds", "FMV calculation latency in milliseconds")
	m.cohortSize = m.gauge("cohort_size", "Athletes tracked by the FMV cohort index")

	m.reconsiderAttempts = m.counterVec("reconsider_attempts_total", "Reconsideration attempts, by outcome", "outcome")
	m.notifications = m.counterVec("notifications_advised_total", "Advisory notifications derived, by type", "type")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by route, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds", "Persistence operation latency in milliseconds", "operation")

	m.queueSize = m.gauge("queue_size", "Scheduled recompute jobs waiting")
	m.queueCapacity = m.gauge("queue_capacity", "Scheduled recompute queue capacity")
	m.queueEnqueue = m.counter("queue_enqueued_total", "Jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeued_total", "Jobs dequeued")
	m.queueRejected = m.counter("queue_rejected_total", "Jobs rejected because the queue was full or closed")
	m.queueDeduped = m.counter("queue_deduplicated_total", "Jobs dropped because the athlete already had one pending")

	m.workerCount = m.gauge("worker_count", "Configured recompute workers")
	m.workerActive = m.gauge("worker_active", "Workers currently processing a job")
	m.workerLatency = m.histogram("worker_latency_milliseconds", "Job processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that finished with an error")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.systemGoroutines = m.gauge("system_goroutines", "Number of goroutines")
	m.systemMemory = m.gauge("system_memory_bytes", "Heap bytes in use")
}

// RecordComplianceScored counts a result by tier and observes latency.
func RecordComplianceScored(tier string, critical bool, latencyMs float64) {
	globalManager.complianceScored.WithLabelValues(tier).Inc()
	if critical {
		globalManager.complianceCritical.Inc()
	}
	globalManager.complianceLatency.Observe(latencyMs)
}

// RecordScorerFault counts an isolated dimension fault.
func RecordScorerFault(dimension string) {
	globalManager.complianceFaults.WithLabelValues(dimension).Inc()
}

// RecordComplianceOverride counts a persisted officer override.
func RecordComplianceOverride() { globalManager.complianceOverrides.Inc() }

// RecordComplianceValidationError counts a rejected scoring request.
func RecordComplianceValidationError() { globalManager.complianceValidations.Inc() }

// RecordFMVCalculation counts a persisted FMV calculation.
func RecordFMVCalculation(trigger string, latencyMs float64) {
	globalManager.fmvCalculations.WithLabelValues(trigger).Inc()
	globalManager.fmvLatency.Observe(latencyMs)
}

// RecordFMVRateLimited counts a refused recalculation.
func RecordFMVRateLimited() { globalManager.fmvRateLimited.Inc() }

// UpdateCohortSize sets the cohort index size.
func UpdateCohortSize(n int) { globalManager.cohortSize.Set(float64(n)) }

// RecordReconsiderAttempt counts an attempt by outcome (ok, expired, wrong-status, ...).
func RecordReconsiderAttempt(outcome string) {
	globalManager.reconsiderAttempts.WithLabelValues(outcome).Inc()
}

// RecordNotification counts an advised notification by type.
func RecordNotification(kind string) {
	globalManager.notifications.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest counts a request and observes its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordRepositoryLatency observes a persistence operation.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateQueueSize sets the pending job gauge.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueRejected counts a job refused by a full or closed queue.
func RecordQueueRejected() { globalManager.queueRejected.Inc() }

// RecordQueueDeduplicated counts a job dropped as already pending.
func RecordQueueDeduplicated() { globalManager.queueDeduped.Inc() }

// UpdateWorkerCount sets the configured worker gauge.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// AddWorkerActive moves the active worker gauge by delta.
func AddWorkerActive(delta int) { globalManager.workerActive.Add(float64(delta)) }

// RecordWorkerLatency observes job processing latency.
func RecordWorkerLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError counts a failed job.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordError counts an error for a component.
func RecordError(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemGoroutines sets the goroutine gauge.
func UpdateSystemGoroutines(n int) { globalManager.systemGoroutines.Set(float64(n)) }

// UpdateSystemMemory sets the heap gauge.
func UpdateSystemMemory(bytes uint64) { globalManager.systemMemory.Set(float64(bytes)) }

// RefreshInterval is how often owners of the global gauges should refresh them.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler exposes the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{Registry: customRegistry})
}
