package realtime

import "github.com/prometheus/client_golang/prometheus"

// Subscribers is the number of live event subscribers.
var Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "authority_events_subscribers",
	Help: "Number of connected session event subscribers",
})

// Dropped counts events not delivered because a subscriber queue was full.
var Dropped = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "authority_events_dropped_total",
	Help: "Session events dropped under subscriber backpressure",
})

// RegisterMetrics registers the realtime collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Subscribers, Dropped)
}
