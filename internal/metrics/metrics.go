// Package metrics exposes Prometheus instrumentation for ingestion, the
// stats store and both HTTP listeners.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	CallsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdio_calls_ingested_total",
			Help: "Total number of calls counted, by talkgroup category",
		},
		[]string{"category"},
	)

	IncompleteUploads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rdio_incomplete_uploads_total",
			Help: "Total number of uploads without a talkgroup",
		},
	)

	IngestFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rdio_ingest_failures_total",
			Help: "Total number of uploads rejected because the store failed",
		},
	)

	LastIngest = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rdio_last_ingest_timestamp_seconds",
			Help: "Unix timestamp of the last counted call",
		},
	)

	// Store
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rdio_store_operation_duration_seconds",
			Help:    "Duration of stats store operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdio_store_errors_total",
			Help: "Total number of failed stats store operations",
		},
		[]string{"operation"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"listener", "method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rdio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"listener", "method", "route"},
	)

	HTTPActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rdio_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
		[]string{"listener"},
	)

	// Directory
	TalkgroupsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rdio_talkgroups_loaded",
			Help: "Number of talkgroups in the loaded directory",
		},
	)
)

// RecordIngest counts one call on a talkgroup of category.
func RecordIngest(category string, at time.Time) {
	CallsIngested.WithLabelValues(category).Inc()
	LastIngest.Set(float64(at.Unix()))
}

// RecordIncomplete counts an upload that carried no talkgroup.
func RecordIncomplete() {
	IncompleteUploads.Inc()
}

// RecordIngestFailure counts an upload lost to a store failure.
func RecordIngestFailure() {
	IngestFailures.Inc()
}

// RecordStoreOp records the latency and outcome of one store operation.
func RecordStoreOp(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(listener, method, route, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(listener, method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(listener, method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge of listener.
func TrackActiveRequest(listener string, inc bool) {
	if inc {
		HTTPActiveRequests.WithLabelValues(listener).Inc()
	} else {
		HTTPActiveRequests.WithLabelValues(listener).Dec()
	}
}

// SetTalkgroupsLoaded publishes the directory size.
func SetTalkgroupsLoaded(n int) {
	TalkgroupsLoaded.Set(float64(n))
}
