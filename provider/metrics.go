package provider

import "github.com/prometheus/client_golang/prometheus"

var appliedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repoindex",
	Subsystem: "provider",
	Name:      "applied_events",
}, []string{"kind"})

var lastUpdate = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "repoindex",
	Subsystem: "provider",
	Name:      "last_successful_update_seconds",
})

var managedIndexes = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "repoindex",
	Subsystem: "provider",
	Name:      "indexes",
})

// Collectors returns the metrics of the provider for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{appliedEvents, lastUpdate, managedIndexes}
}
