// Package observability exposes Prometheus metrics for the service.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream data.gov.sg calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"source"},
	)

	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dengue_polls_total",
			Help: "Cluster poll outcomes.",
		},
		[]string{"outcome"},
	)

	snapshotAgeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dengue_snapshot_age_seconds",
			Help: "Seconds since the current cluster snapshot was fetched.",
		},
	)

	snapshotGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dengue_snapshot_generation",
			Help: "Monotonic generation of the current cluster snapshot.",
		},
	)

	snapshotClusters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dengue_snapshot_clusters",
			Help: "Number of active clusters in the current snapshot.",
		},
	)

	riskComputeSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risk_compute_duration_seconds",
			Help:    "Duration of a full risk surface recomputation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	cacheOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_cache_op_duration_seconds",
			Help:    "Duration of snapshot cache operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "status"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(source string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(source).Observe(durationSeconds)
}

// IncPoll records a poll outcome: ok, http_error, transport_error,
// decode_error or skipped_overlap.
func IncPoll(outcome string) {
	pollsTotal.WithLabelValues(outcome).Inc()
}

func SetSnapshotAgeSeconds(age float64) {
	snapshotAgeSeconds.Set(age)
}

func SetSnapshotGeneration(gen uint64) {
	snapshotGeneration.Set(float64(gen))
}

func SetSnapshotClusters(n int) {
	snapshotClusters.Set(float64(n))
}

func ObserveRiskCompute(durationSeconds float64) {
	riskComputeSeconds.Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	cacheOpSeconds.WithLabelValues(op, status).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
