// Package metrics holds the Prometheus collectors exposed at GET /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters
var (
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarlantv_probes_total",
		Help: "Stream probes by outcome (ok, bad_status, timeout, error, invalid_url)",
	}, []string{"outcome"})
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarlantv_jobs_total",
		Help: "Ingestion jobs by terminal status",
	}, []string{"status"})
	ChannelsParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tarlantv_channels_parsed_total",
		Help: "Channels parsed from ingested playlists",
	})
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarlantv_http_requests_total",
		Help: "HTTP API requests by method and status code",
	}, []string{"method", "status"})
)

// Gauges
var (
	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tarlantv_jobs_in_flight",
		Help: "Ingestion jobs currently running",
	})
	ProbesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tarlantv_probes_in_flight",
		Help: "Stream probes currently running",
	})
)

// Histograms
var (
	ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tarlantv_probe_duration_seconds",
		Help:    "Latency of a single stream probe",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16},
	})
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tarlantv_batch_duration_seconds",
		Help:    "Time to validate all channels of one job",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
