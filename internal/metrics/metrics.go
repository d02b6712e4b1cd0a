package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempmexico_source_fetches_total",
			Help: "Total dataset and model artifact fetches",
		},
		[]string{"scheme", "status"},
	)

	ObservationsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tempmexico_observations_loaded",
			Help: "Observations held by the current session",
		},
	)

	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempmexico_rows_skipped_total",
			Help: "Dataset rows dropped at load time",
		},
		[]string{"reason"},
	)

	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempmexico_estimates_total",
			Help: "Total estimates computed",
		},
		[]string{"estimator", "outcome"},
	)

	EstimateLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tempmexico_estimate_latency_seconds",
			Help:    "Estimate computation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"estimator"},
	)
)
