package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Execution outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Rejection reason labels.
const (
	ReasonUnsupportedLanguage = "unsupported_language"
	ReasonOverloaded          = "overloaded"
)

// Metrics bundles the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so components can treat it as optional.
type Metrics struct {
	registry   *prometheus.Registry
	executions *prometheus.CounterVec
	rejections *prometheus.CounterVec
	inFlight   prometheus.Gauge
	duration   *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Name:      "executions_total",
			Help:      "Completed executions by language and outcome.",
		}, []string{"language", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Name:      "rejections_total",
			Help:      "Requests rejected before dispatch, by reason.",
		}, []string{"reason"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runbox",
			Name:      "in_flight_requests",
			Help:      "Accepted requests not yet completed.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "runbox",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock execution time by language.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"language"}),
	}
	reg.MustRegister(m.executions, m.rejections, m.inFlight, m.duration)
	return m
}

// Registry returns the underlying registry for the exposition endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveExecution records one completed execution.
func (m *Metrics) ObserveExecution(language, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(language, outcome).Inc()
	m.duration.WithLabelValues(language).Observe(d.Seconds())
}

// IncRejection records one rejected request.
func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// InFlightAdd moves the in-flight gauge.
func (m *Metrics) InFlightAdd(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}
