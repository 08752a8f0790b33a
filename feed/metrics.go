package feed

import "github.com/prometheus/client_golang/prometheus"

var messages = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repoindex",
	Subsystem: "feed",
	Name:      "messages",
}, []string{"outcome"})

var batches = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "repoindex",
	Subsystem: "feed",
	Name:      "batches",
})

// Collectors returns the metrics of the feed for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{messages, batches}
}
