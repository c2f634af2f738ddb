package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Correlation engine metrics.
//
// All metrics are automatically registered with Prometheus.

var (
	// CorrelationsTotal counts correlation passes.
	// Labels:
	//   - result: "ok", "timeout", "cancelled", "config_error" or "error"
	CorrelationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "correlation",
			Name:      "runs_total",
			Help:      "Total number of correlation passes",
		},
		[]string{"result"},
	)

	// CorrelationDuration measures a full correlation pass
	CorrelationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "argus",
			Subsystem: "correlation",
			Name:      "duration_seconds",
			Help:      "Time spent in one correlation pass",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	// CorrelatedResults counts emitted results by confidence bucket.
	// Labels:
	//   - confidence: "high", "medium" or "low"
	CorrelatedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "correlation",
			Name:      "results_total",
			Help:      "Total number of correlated results by confidence",
		},
		[]string{"confidence"},
	)

	// PairsCompared counts primary/secondary pairs that were scored
	PairsCompared = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "correlation",
			Name:      "pairs_compared_total",
			Help:      "Total number of record pairs scored",
		},
	)

	// GeoCacheLookups counts place-name cache lookups.
	// Labels:
	//   - result: "hit" or "miss"
	GeoCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "correlation",
			Name:      "geo_cache_lookups_total",
			Help:      "Total number of normalised place-name cache lookups",
		},
		[]string{"result"},
	)

	// BatchPanics counts recovered panics in batch workers
	BatchPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "argus",
			Subsystem: "batch",
			Name:      "worker_panics_total",
			Help:      "Total number of panics recovered in batch workers",
		},
	)
)
