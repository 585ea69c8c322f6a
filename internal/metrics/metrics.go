// Package metrics exposes Prometheus collectors for the assessment engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assessment"

// Metrics holds the engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	startDenied       *prometheus.CounterVec
	scores            *prometheus.HistogramVec
	httpDuration      *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Assessment sessions started, by step.",
		}, []string{"step"}),
		sessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Assessment sessions completed, by step and outcome.",
		}, []string{"step", "outcome"}),
		startDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_denied_total",
			Help:      "Start requests refused by the eligibility gate, by reason.",
		}, []string{"reason"}),
		scores: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_percent",
			Help:      "Graded session scores.",
			Buckets:   []float64{10, 25, 50, 75, 90, 100},
		}, []string{"step"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionStarted counts a started session
func (m *Metrics) SessionStarted(step int) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(strconv.Itoa(step)).Inc()
}

// SessionCompleted counts a completed session and records its score
func (m *Metrics) SessionCompleted(step int, outcome string, score float64) {
	if m == nil {
		return
	}
	label := strconv.Itoa(step)
	m.sessionsCompleted.WithLabelValues(label, outcome).Inc()
	m.scores.WithLabelValues(label).Observe(score)
}

// StartDenied counts a start refused by the eligibility gate
func (m *Metrics) StartDenied(reason string) {
	if m == nil {
		return
	}
	m.startDenied.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
