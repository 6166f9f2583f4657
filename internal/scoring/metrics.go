package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	casesScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cases_scored_total",
			Help: "Total number of return cases scored, by risk tier",
		},
		[]string{"tier"},
	)

	scoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "case_scoring_duration_seconds",
			Help:    "Duration of a single case scoring pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	scoringBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "case_scoring_batch_size",
			Help:    "Number of cases per batch scoring request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)
