package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK          = "ok"
	outcomeTimeout     = "timeout"
	outcomeCancelled   = "cancelled"
	outcomeCorpusError = "corpus_error"
)

var (
	// Total matching runs partitioned by outcome
	matchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentation_match_runs_total",
			Help: "Total number of matching runs executed",
		},
		[]string{"outcome"},
	)

	// Wall-clock duration of matching runs in seconds
	matchRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "segmentation_match_run_duration_seconds",
			Help:    "Matching run latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Guests evaluated across all matching runs
	guestsEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segmentation_guests_evaluated_total",
			Help: "Total number of guest records evaluated by the matching engine",
		},
	)
)
