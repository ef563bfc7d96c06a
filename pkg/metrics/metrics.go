// Package metrics exposes Prometheus counters/histograms/gauges for the
// queue and worker pool, registered on a dedicated registry served at
// /metrics (SPEC_FULL.md §4.9). Grounded on the observability packages
// carried by kubernaut and hector, both of which wrap client_golang behind
// a single struct of pre-registered vectors plus nil-receiver no-op methods
// so call sites never have to nil-check a disabled metrics instance.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deepresearch"

// Metrics holds every registered vector. A nil *Metrics is valid and every
// method on it is a no-op, so callers can pass a possibly-nil instance
// through without branching on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	queueJobsTotal    *prometheus.CounterVec
	queueHandlerDur   *prometheus.HistogramVec
	workerPoolWorkers *prometheus.GaugeVec

	llmCallsTotal  *prometheus.CounterVec
	llmCallDur     *prometheus.HistogramVec
	agentRunsTotal *prometheus.CounterVec
}

// New constructs a Metrics instance with its own registry, so the exposed
// /metrics surface never mixes in the default global registry's process
// collectors twisted into our naming.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.queueJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "handled_total",
		Help:      "Total number of queue items handled, by kind and outcome.",
	}, []string{"kind", "outcome"})

	m.queueHandlerDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "handler_duration_seconds",
		Help:      "Phase handler duration in seconds, by kind.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"kind"})

	m.workerPoolWorkers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "workers",
		Help:      "Worker pool occupancy, by status.",
	}, []string{"status"})

	m.llmCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total number of LLM provider calls, by backend and outcome.",
	}, []string{"backend", "outcome"})

	m.llmCallDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "LLM provider call duration in seconds, by backend.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"backend"})

	m.agentRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "runs_total",
		Help:      "Total number of agentrunner.Run invocations, by agent name and outcome.",
	}, []string{"agent", "outcome"})

	m.registry.MustRegister(
		m.queueJobsTotal, m.queueHandlerDur, m.workerPoolWorkers,
		m.llmCallsTotal, m.llmCallDur, m.agentRunsTotal,
	)
	return m
}

// ObserveQueueHandled records one queue item's handling outcome and the
// handler's wall-clock duration.
func (m *Metrics) ObserveQueueHandled(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queueJobsTotal.WithLabelValues(kind, outcome).Inc()
	m.queueHandlerDur.WithLabelValues(kind).Observe(d.Seconds())
}

// SetWorkerPoolOccupancy reports the current idle/working worker counts.
func (m *Metrics) SetWorkerPoolOccupancy(idle, working int) {
	if m == nil {
		return
	}
	m.workerPoolWorkers.WithLabelValues("idle").Set(float64(idle))
	m.workerPoolWorkers.WithLabelValues("working").Set(float64(working))
}

// ObserveLLMCall records an LLM provider call's outcome and duration.
func (m *Metrics) ObserveLLMCall(backend, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmCallsTotal.WithLabelValues(backend, outcome).Inc()
	m.llmCallDur.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveAgentRun records an agentrunner.Run invocation's outcome.
func (m *Metrics) ObserveAgentRun(agentName, outcome string) {
	if m == nil {
		return
	}
	m.agentRunsTotal.WithLabelValues(agentName, outcome).Inc()
}

// Handler returns the HTTP handler serving this instance's registry in the
// Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
