package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	requestsTotal            *prometheus.CounterVec
	latencySeconds           *prometheus.HistogramVec
	errorsTotal              *prometheus.CounterVec
	resultTransitionsTotal   *prometheus.CounterVec
	updateResolutionsTotal   *prometheus.CounterVec
	publicationBatchSizeHist prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors for the result API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "result_api_requests_total",
			Help: "Total number of result-management API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "result_api_latency_seconds",
			Help:    "Latency distribution for result-management API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "result_api_errors_total",
			Help: "Total number of error responses returned by result-management endpoints.",
		}, []string{"method", "route", "status"})

		resultTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "result_transitions_total",
			Help: "Total approval-status transitions applied to results.",
		}, []string{"from", "to"})

		updateResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "result_update_resolutions_total",
			Help: "Total update requests resolved, by outcome.",
		}, []string{"outcome"})

		publicationBatchSizeHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "result_publication_batch_size",
			Help:    "Number of results flipped visible per publication batch.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		})

		prometheus.MustRegister(
			requestsTotal,
			latencySeconds,
			errorsTotal,
			resultTransitionsTotal,
			updateResolutionsTotal,
			publicationBatchSizeHist,
		)
	})
}

// Requests exposes the counter for result API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for result API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for result API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// ResultTransitions exposes the counter for approval-status transitions.
func ResultTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return resultTransitionsTotal
}

// UpdateRequestResolutions exposes the counter for update request outcomes.
func UpdateRequestResolutions() *prometheus.CounterVec {
	RegisterMetrics()
	return updateResolutionsTotal
}

// PublicationBatchSize exposes the histogram of publication batch sizes.
func PublicationBatchSize() prometheus.Histogram {
	RegisterMetrics()
	return publicationBatchSizeHist
}
