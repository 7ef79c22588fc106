package badge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pycompat",
	Subsystem: "badge",
	Name:      "refreshes_total",
	Help:      "Badge result refreshes by outcome.",
}, []string{"result"})
