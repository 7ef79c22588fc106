package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pycompat",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Badge cache lookups that found a value.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pycompat",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Badge cache lookups that found nothing.",
	})
)
