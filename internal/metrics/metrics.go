// Package metrics exposes Prometheus collectors for the façade and its
// upstream OpenStack traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackgate_api_requests_total",
			Help: "Total number of façade requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stackgate_api_request_duration_seconds",
			Help:    "Façade request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"route", "method"},
	)

	// Upstream metrics
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackgate_upstream_requests_total",
			Help: "Total number of OpenStack API calls by service, method and status code",
		},
		[]string{"service", "method", "code"},
	)

	TokenIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackgate_token_issued_total",
			Help: "Total number of identity tokens obtained, by source (keystone or cache)",
		},
		[]string{"cloud", "source"},
	)

	// Workflow metrics
	PollAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackgate_poll_attempts_total",
			Help: "Total number of status checks made while waiting on asynchronous operations",
		},
		[]string{"operation"},
	)

	ScaleOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackgate_scale_operations_total",
			Help: "Total number of scale operations by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(TokenIssuedTotal)
	prometheus.MustRegister(PollAttemptsTotal)
	prometheus.MustRegister(ScaleOperationsTotal)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration in a histogram
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
