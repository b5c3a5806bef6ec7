// Package metrics mirrors execruntime's UsageCollector into Prometheus
// counters, grounded on the pack's agent/tool metrics exporters
// (haasonsaas-nexus, kadirpekel-hector), so a running workerflow process can
// be scraped directly alongside its OTEL traces.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes call-level and token-level counters for one Runtime.
// A nil *Metrics is safe to call methods on; every method no-ops.
type Metrics struct {
	registry *prometheus.Registry

	callTotal    *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	callErrors   *prometheus.CounterVec

	tokensInput  *prometheus.CounterVec
	tokensOutput *prometheus.CounterVec
	tokensCache  *prometheus.CounterVec

	toolCalls  *prometheus.CounterVec
	toolErrors *prometheus.CounterVec
}

// New builds a Metrics instance with a fresh registry under the given
// namespace (for example "workerflow").
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.callTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "entry", Name: "calls_total",
		Help: "Total number of entry invocations (worker or function turns).",
	}, []string{"entry", "kind"})

	m.callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "entry", Name: "call_duration_seconds",
		Help:    "Entry invocation duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"entry", "kind"})

	m.callErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "entry", Name: "errors_total",
		Help: "Total number of entry invocation errors by error kind.",
	}, []string{"entry", "error_kind"})

	m.tokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "model", Name: "input_tokens_total",
		Help: "Total input tokens consumed.",
	}, []string{"model"})

	m.tokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "model", Name: "output_tokens_total",
		Help: "Total output tokens produced.",
	}, []string{"model"})

	m.tokensCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "model", Name: "cache_tokens_total",
		Help: "Total cache read/write tokens by direction.",
	}, []string{"model", "direction"})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations.",
	}, []string{"tool"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool invocation errors.",
	}, []string{"tool"})

	m.registry.MustRegister(
		m.callTotal, m.callDuration, m.callErrors,
		m.tokensInput, m.tokensOutput, m.tokensCache,
		m.toolCalls, m.toolErrors,
	)
	return m
}

// RecordCall records one entry invocation's outcome and duration.
func (m *Metrics) RecordCall(entry, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.callTotal.WithLabelValues(entry, kind).Inc()
	m.callDuration.WithLabelValues(entry, kind).Observe(d.Seconds())
}

// RecordCallError records an entry invocation failing with the given
// rerr.Kind string.
func (m *Metrics) RecordCallError(entry, errorKind string) {
	if m == nil {
		return
	}
	m.callErrors.WithLabelValues(entry, errorKind).Inc()
}

// RecordTokens mirrors one model.TokenUsage sample into the input/output/cache counters.
func (m *Metrics) RecordTokens(modelID string, input, output, cacheRead, cacheWrite int) {
	if m == nil {
		return
	}
	m.tokensInput.WithLabelValues(modelID).Add(float64(input))
	m.tokensOutput.WithLabelValues(modelID).Add(float64(output))
	if cacheRead > 0 {
		m.tokensCache.WithLabelValues(modelID, "read").Add(float64(cacheRead))
	}
	if cacheWrite > 0 {
		m.tokensCache.WithLabelValues(modelID, "write").Add(float64(cacheWrite))
	}
}

// RecordToolCall records one tool invocation, incrementing the error counter
// too when isError is true.
func (m *Metrics) RecordToolCall(tool string, isError bool) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool).Inc()
	if isError {
		m.toolErrors.WithLabelValues(tool).Inc()
	}
}

// Handler returns the Prometheus scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
