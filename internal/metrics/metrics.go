// Package metrics exposes the engine's Prometheus collectors: HTTP
// traffic, paper ingestion, problem extraction, concept matching,
// workflow runs, and sandbox executions.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scigraph/engine/internal/runtime"
)

// Metrics holds every collector the engine registers.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec

	PapersImportedTotal    *prometheus.CounterVec
	ProblemsExtractedTotal *prometheus.CounterVec
	ExtractionDuration     *prometheus.HistogramVec

	MentionsMatchedTotal *prometheus.CounterVec
	ReviewQueueDepth     *prometheus.GaugeVec

	WorkflowRunsTotal   *prometheus.CounterVec
	WorkflowRunDuration *prometheus.HistogramVec
	WorkflowRunsActive  prometheus.Gauge

	SandboxExecutionsTotal    *prometheus.CounterVec
	SandboxExecutionDuration  *prometheus.HistogramVec

	ServiceInfo *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer.
// A nil registerer skips registration. The tests pass a fresh
// prometheus.NewRegistry() to avoid colliding on the global default
// registry across test runs.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total number of HTTP requests"},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "http_requests_in_flight", Help: "Current number of in-flight HTTP requests"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "errors_total", Help: "Total number of errors by kind"},
			[]string{"service", "kind", "operation"},
		),

		PapersImportedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "papers_imported_total", Help: "Total number of papers imported"},
			[]string{"source", "outcome"},
		),
		ProblemsExtractedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "problems_extracted_total", Help: "Total number of problems extracted from sections"},
			[]string{"section_type"},
		),
		ExtractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extraction_duration_seconds",
				Help:    "Section problem-extraction duration in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"section_type"},
		),

		MentionsMatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "mentions_matched_total", Help: "Total number of mentions classified by the concept matcher"},
			[]string{"tier"},
		),
		ReviewQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "review_queue_depth", Help: "Current number of pending reviews"},
			[]string{"priority"},
		),

		WorkflowRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "workflow_runs_total", Help: "Total number of workflow runs by terminal outcome"},
			[]string{"outcome"},
		),
		WorkflowRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workflow_run_duration_seconds",
				Help:    "Workflow run duration in seconds, start to terminal state",
				Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
			},
			[]string{"outcome"},
		),
		WorkflowRunsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "workflow_runs_active", Help: "Current number of non-terminal workflow runs"},
		),

		SandboxExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sandbox_executions_total", Help: "Total number of sandbox evaluation runs by outcome"},
			[]string{"outcome"},
		),
		SandboxExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandbox_execution_duration_seconds",
				Help:    "Sandbox evaluation-script execution duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),

		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "service_info", Help: "Static service metadata"},
			[]string{"service", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal, m.RequestDuration, m.RequestsInFlight,
			m.ErrorsTotal,
			m.PapersImportedTotal, m.ProblemsExtractedTotal, m.ExtractionDuration,
			m.MentionsMatchedTotal, m.ReviewQueueDepth,
			m.WorkflowRunsTotal, m.WorkflowRunDuration, m.WorkflowRunsActive,
			m.SandboxExecutionsTotal, m.SandboxExecutionDuration,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, string(runtime.Env())).Set(1)
	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records one typed error against operation.
func (m *Metrics) RecordError(service, kind, operation string) {
	m.ErrorsTotal.WithLabelValues(service, kind, operation).Inc()
}

// RecordPaperImport records the outcome of one Importer.ImportPaper call.
func (m *Metrics) RecordPaperImport(source, outcome string) {
	m.PapersImportedTotal.WithLabelValues(source, outcome).Inc()
}

// RecordExtraction records one section's problem-extraction pass.
func (m *Metrics) RecordExtraction(sectionType string, problemCount int, duration time.Duration) {
	m.ProblemsExtractedTotal.WithLabelValues(sectionType).Add(float64(problemCount))
	m.ExtractionDuration.WithLabelValues(sectionType).Observe(duration.Seconds())
}

// RecordMatch records one concept-matcher tiering decision.
func (m *Metrics) RecordMatch(tier string) {
	m.MentionsMatchedTotal.WithLabelValues(tier).Inc()
}

// SetReviewQueueDepth sets the current pending-review count for priority.
func (m *Metrics) SetReviewQueueDepth(priority string, depth int) {
	m.ReviewQueueDepth.WithLabelValues(priority).Set(float64(depth))
}

// RecordWorkflowRun records one workflow run reaching a terminal state.
func (m *Metrics) RecordWorkflowRun(outcome string, duration time.Duration) {
	m.WorkflowRunsTotal.WithLabelValues(outcome).Inc()
	m.WorkflowRunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetActiveWorkflowRuns sets the current non-terminal run count.
func (m *Metrics) SetActiveWorkflowRuns(count int) {
	m.WorkflowRunsActive.Set(float64(count))
}

// RecordSandboxExecution records one evaluation-script run.
func (m *Metrics) RecordSandboxExecution(outcome string, duration time.Duration) {
	m.SandboxExecutionsTotal.WithLabelValues(outcome).Inc()
	m.SandboxExecutionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Enabled reports whether the Prometheus /metrics endpoint should be
// exposed, following the same environment-sensitive default as the rest
// of the engine's observability surface.
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

var (
	global   *Metrics
	globalMu sync.Mutex
)

// Init initializes the process-wide Metrics instance, if not already done.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(serviceName)
	}
	return global
}

// Global returns the process-wide Metrics instance, initializing a
// default one if Init was never called.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New("scigraph-engine")
	}
	return global
}
