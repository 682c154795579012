package devserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dev server activity.
type Metrics struct {
	Connections prometheus.Gauge
	Updates     *prometheus.CounterVec
	Refreshes   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pack",
			Subsystem: "devserver",
			Name:      "connections",
			Help:      "Number of connected update clients.",
		}),
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pack",
			Subsystem: "devserver",
			Name:      "updates_total",
			Help:      "Number of chunk list updates sent, by kind.",
		}, []string{"kind"}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pack",
			Subsystem: "devserver",
			Name:      "refreshes_total",
			Help:      "Number of times the served outputs were recomputed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.Updates, m.Refreshes)
	}
	return m
}
