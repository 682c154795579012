package memo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts memo engine activity.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Computations  prometheus.Counter
	Invalidations prometheus.Counter
	Evictions     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pack",
			Subsystem: "memo",
			Name:      "hits_total",
			Help:      "Number of memoized values served from cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pack",
			Subsystem: "memo",
			Name:      "misses_total",
			Help:      "Number of lookups that required a computation.",
		}),
		Computations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pack",
			Subsystem: "memo",
			Name:      "computations_total",
			Help:      "Number of computations executed.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pack",
			Subsystem: "memo",
			Name:      "invalidations_total",
			Help:      "Number of cells dropped because an input changed.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pack",
			Subsystem: "memo",
			Name:      "evictions_total",
			Help:      "Number of cells evicted by the size bound.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Computations, m.Invalidations, m.Evictions)
	}
	return m
}
