package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lawyerai"

// Turn outcomes used as the "outcome" label of turns_total.
const (
	OutcomeGreeting       = "greeting"
	OutcomeReply          = "reply"
	OutcomeFallback       = "fallback"
	OutcomeInvalidInput   = "invalid_input"
	OutcomeProviderFailed = "provider_failure"
)

type moduleMetrics struct {
	turnsTotal *prometheus.CounterVec

	activeSessions prometheus.Gauge

	jurisdictionDetections *prometheus.CounterVec
	transliterationTotal   prometheus.Counter

	completionDuration    *prometheus.HistogramVec
	completionErrorsTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			turnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "turns_total",
					Help:      "Total chat turns by outcome.",
				},
				[]string{"outcome"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "active_sessions",
					Help:      "Current number of in-memory sessions.",
				},
			),
			jurisdictionDetections: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "jurisdiction_detections_total",
					Help:      "Jurisdiction detection attempts by result (matched, unmatched).",
				},
				[]string{"result"},
			),
			transliterationTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "transliteration_detected_total",
					Help:      "Messages flagged as transliterated.",
				},
			),
			completionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "completion_duration_seconds",
					Help:      "Completion provider call duration in seconds by provider.",
					Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
				},
				[]string{"provider"},
			),
			completionErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "completion_errors_total",
					Help:      "Completion provider failures by provider.",
				},
				[]string{"provider"},
			),
			httpRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "http_requests_total",
					Help:      "HTTP requests by path and status code.",
				},
				[]string{"path", "status"},
			),
			httpRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "http_request_duration_seconds",
					Help:      "HTTP request duration in seconds by path.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"path"},
			),
		}

		prometheus.MustRegister(
			m.turnsTotal,
			m.activeSessions,
			m.jurisdictionDetections,
			m.transliterationTotal,
			m.completionDuration,
			m.completionErrorsTotal,
			m.httpRequestsTotal,
			m.httpRequestDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordTurn(outcome string) {
	m := getMetrics()
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordJurisdictionDetection(matched bool) {
	m := getMetrics()
	result := "unmatched"
	if matched {
		result = "matched"
	}
	m.jurisdictionDetections.WithLabelValues(result).Inc()
}

func RecordTransliteration() {
	m := getMetrics()
	m.transliterationTotal.Inc()
}

func RecordCompletion(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.completionDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if !success {
		m.completionErrorsTotal.WithLabelValues(provider).Inc()
	}
}

func RecordHTTPRequest(path string, status int, duration time.Duration) {
	m := getMetrics()
	m.httpRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}
