// Package metrics exposes Prometheus metrics for tariff evaluation and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/tariffs/tariff"
)

// Evaluation outcomes, used as the "outcome" label.
const (
	OutcomeInactive   = "inactive"
	OutcomeIneligible = "ineligible"
	OutcomeApplied    = "applied"
	OutcomeNoItems    = "no_items"
	OutcomeError      = "error"
)

// Manager owns the service metrics and the registry they live on.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	linesEvaluated     prometheus.Counter
	linesApplied       prometheus.Counter
	tariffValidity     *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithRegistry the metrics
// go on a private registry so Go runtime collectors are not exported.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tariffs",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluations_total",
		Help:      "Total number of tariff evaluations by outcome",
	}, []string{"outcome"})

	m.evaluationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_duration_seconds",
		Help:      "Time spent running the applicability pipeline",
		Buckets:   m.histogramBuckets,
	})

	m.linesEvaluated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "basket_lines_evaluated_total",
		Help:      "Total number of basket lines passed through the pipeline",
	})

	m.linesApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "basket_lines_applied_total",
		Help:      "Total number of basket lines a tariff applied to",
	})

	m.tariffValidity = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validity_checks_total",
		Help:      "Temporal validity checks by result",
	}, []string{"active"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by route, method and status",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by route and method",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// Registry returns the registry metrics are registered on
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome classifies an evaluation result
func Outcome(ev *tariff.Evaluation, err error) string {
	switch {
	case err != nil || ev == nil:
		return OutcomeError
	case !ev.Active:
		return OutcomeInactive
	case !ev.PatientEligible:
		return OutcomeIneligible
	case ev.AppliedCount() == 0:
		return OutcomeNoItems
	default:
		return OutcomeApplied
	}
}

// ObserveEvaluation implements tariff.Recorder
func (m *Manager) ObserveEvaluation(_ string, ev *tariff.Evaluation, elapsed time.Duration, err error) {
	m.evaluations.WithLabelValues(Outcome(ev, err)).Inc()
	m.evaluationDuration.Observe(elapsed.Seconds())
	if ev == nil {
		return
	}
	m.linesEvaluated.Add(float64(len(ev.Basket)))
	m.linesApplied.Add(float64(ev.AppliedCount()))
}

// TariffValidity implements tariff.Observer
func (m *Manager) TariffValidity(_ *tariff.Tariff, _ time.Time, active bool) {
	m.tariffValidity.WithLabelValues(strconv.FormatBool(active)).Inc()
}

// PatientEligibility implements tariff.Observer
func (m *Manager) PatientEligibility(*tariff.Tariff, tariff.Person, bool) {}

// RecordHTTPRequest records one served request
func (m *Manager) RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
