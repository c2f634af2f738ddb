package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_queries_parsed_total",
			Help: "Total number of queries parsed",
		},
		[]string{"result"},
	)

	QueriesValidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_queries_validated_total",
			Help: "Total number of queries validated against an entity type",
		},
		[]string{"entity", "result"},
	)

	QueriesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_queries_rejected_total",
			Help: "Total number of queries rejected by the sanitizer",
		},
		[]string{"reason"},
	)

	SanitizerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_sanitizer_duration_seconds",
			Help:    "Time taken to run sanitizer patterns over a query",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	RecordsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_records_evaluated_total",
			Help: "Total number of records evaluated against predicate trees",
		},
		[]string{"entity"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_search_duration_seconds",
			Help:    "Time taken to fetch and filter one entity collection",
			Buckets: prometheus.DefBuckets,
		},
	)
)
