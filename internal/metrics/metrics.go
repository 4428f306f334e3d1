package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the auth and eligibility core
type Metrics struct {
	NoncesIssued      prometheus.Counter
	NonceConsumptions *prometheus.CounterVec
	NoncesSwept       prometheus.Counter
	Verifications     *prometheus.CounterVec
	EligibilityChecks prometheus.Counter
	BinsMatched       prometheus.Histogram

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		NoncesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "cura_nonces_issued_total",
			Help: "Total number of challenge nonces issued",
		}),
		NonceConsumptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cura_nonce_consumptions_total",
			Help: "Nonce consumption attempts by result",
		}, []string{"result"}),
		NoncesSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "cura_nonces_swept_total",
			Help: "Total number of nonce records removed by the sweeper",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cura_auth_verifications_total",
			Help: "Wallet signature verifications by outcome",
		}, []string{"outcome"}),
		EligibilityChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "cura_eligibility_checks_total",
			Help: "Total number of eligibility bin computations",
		}),
		BinsMatched: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cura_eligibility_bins_matched",
			Help:    "Number of bins matched per eligibility computation",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cura_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cura_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveConsume records a nonce consumption outcome
func (m *Metrics) ObserveConsume(result string) {
	m.NonceConsumptions.WithLabelValues(result).Inc()
}

// ObserveVerification records a verification outcome
func (m *Metrics) ObserveVerification(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}

// ObserveEligibility records one eligibility computation
func (m *Metrics) ObserveEligibility(matched int) {
	m.EligibilityChecks.Inc()
	m.BinsMatched.Observe(float64(matched))
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
