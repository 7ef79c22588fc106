package checker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pycompat",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Duration of pip install-and-check probes by outcome.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"status"},
	)
	remoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pycompat",
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Requests made to the check endpoint by HTTP status code.",
		},
		[]string{"code"},
	)
)
