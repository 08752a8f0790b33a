package localindex

import "github.com/prometheus/client_golang/prometheus"

var indexOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repoindex",
	Subsystem: "local_index",
	Name:      "operations",
}, []string{"index", "operation"})

var filterResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repoindex",
	Subsystem: "local_index",
	Name:      "filter_results",
}, []string{"index"})

var filterDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "repoindex",
	Subsystem: "local_index",
	Name:      "filter_duration_seconds",
	Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
}, []string{"index"})

var failOpenConstraints = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "repoindex",
	Subsystem: "local_index",
	Name:      "ignored_constraints",
}, []string{"index", "constraint"})

// Collectors returns the metrics of the local indexes for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{indexOperations, filterResults, filterDuration, failOpenConstraints}
}
