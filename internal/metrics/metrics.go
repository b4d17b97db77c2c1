// Package metrics provides Prometheus instrumentation for the draw client and sandbox.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts remote API calls by operation and outcome.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blindbox_api_requests_total",
		Help: "Total remote API calls",
	}, []string{"operation", "outcome"})

	// APIRequestDuration tracks remote API latency by operation.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blindbox_api_request_duration_seconds",
		Help:    "Remote API call duration in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation"})

	// PurchasesTotal counts purchase attempts by outcome.
	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blindbox_purchases_total",
		Help: "Purchase attempts partitioned by outcome",
	}, []string{"outcome"})

	// SessionInvalidations counts credential invalidations.
	SessionInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blindbox_session_invalidations_total",
		Help: "Credential invalidations triggered by authorization failures or logout",
	})

	// SandboxSlotsAllocated counts slots handed out by the sandbox backend.
	SandboxSlotsAllocated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blindbox_sandbox_slots_allocated_total",
		Help: "Slots allocated by the sandbox backend",
	}, []string{"series_id"})
)

// ObserveAPI records one remote call.
func ObserveAPI(operation, outcome string, started time.Time) {
	APIRequestsTotal.WithLabelValues(operation, outcome).Inc()
	APIRequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
