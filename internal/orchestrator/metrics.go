package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pycompat",
			Subsystem: "orchestrator",
			Name:      "checks_total",
			Help:      "Completed checks by result status.",
		},
		[]string{"status"},
	)
	unitFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pycompat",
			Subsystem: "orchestrator",
			Name:      "unit_failures_total",
			Help:      "Checks that failed after all retries.",
		},
	)
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pycompat",
			Subsystem: "orchestrator",
			Name:      "run_duration_seconds",
			Help:      "Duration of whole orchestrator runs.",
			Buckets:   prometheus.ExponentialBuckets(60, 2, 10),
		},
	)
)
