// Package metrics holds the Prometheus collectors for the download pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Requests counts finished pipeline runs by outcome.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dlpapi_requests_total",
		Help: "Download requests by outcome",
	}, []string{"outcome"})

	// StageDuration tracks how long each pipeline stage takes.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dlpapi_stage_duration_seconds",
		Help:    "Duration of download pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 15), // 50ms to ~14min
	}, []string{"stage"})

	// Transcodes counts transcoder invocations by target format.
	Transcodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dlpapi_transcodes_total",
		Help: "Transcoder invocations by output format",
	}, []string{"format"})

	// CleanupFailures counts staging directories or intermediates that could not be removed.
	CleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlpapi_cleanup_failures_total",
		Help: "Failed removals of staging directories and intermediate files",
	})

	// SelectorFallbacks counts probes that degraded to the best-available selector.
	SelectorFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlpapi_selector_fallbacks_total",
		Help: "Stream probes that fell back to the best-available selector",
	})
)

// Outcome labels for Requests.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
