package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatehouse_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	identificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_identifications_total",
		Help: "Count of visitor identification attempts by method and result",
	}, []string{"method", "result"})

	faceMatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatehouse_face_match_duration_seconds",
		Help:    "Duration of face roster matching attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	gateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_gate_transitions_total",
		Help: "Count of gate state transitions by action and result",
	}, []string{"action", "result"})

	secretCodeChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_secret_code_checks_total",
		Help: "Count of secret-code authorization attempts",
	}, []string{"result"})

	visitorsOnSite = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_visitors_on_site",
		Help: "Number of visitors currently checked in",
	})

	embeddingCacheWarm = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_embedding_warm_total",
		Help: "Count of embedding warm operations by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveIdentification counts an identification attempt.
// method is "national_id" or "face"; result is "match", "no_match",
// "no_face", "timeout" or "error".
func ObserveIdentification(method, result string) {
	identificationsTotal.WithLabelValues(method, result).Inc()
}

// ObserveFaceMatch records the duration of a roster match.
func ObserveFaceMatch(result string, duration time.Duration) {
	faceMatchDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveGateTransition counts a state-machine transition attempt.
func ObserveGateTransition(action, result string) {
	gateTransitions.WithLabelValues(action, result).Inc()
}

// ObserveSecretCodeCheck counts a secret-code authorization attempt.
func ObserveSecretCodeCheck(result string) {
	secretCodeChecks.WithLabelValues(result).Inc()
}

// SetVisitorsOnSite updates the on-site gauge.
func SetVisitorsOnSite(n int) {
	visitorsOnSite.Set(float64(n))
}

// IncrementOnSite adjusts the on-site gauge after a check-in.
func IncrementOnSite() { visitorsOnSite.Inc() }

// DecrementOnSite adjusts the on-site gauge after a check-out.
func DecrementOnSite() { visitorsOnSite.Dec() }

// ObserveEmbeddingWarm counts a warm-worker operation.
func ObserveEmbeddingWarm(result string) {
	embeddingCacheWarm.WithLabelValues(result).Inc()
}
