package executor

import "github.com/prometheus/client_golang/prometheus"

var (
	executedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calvin",
			Subsystem: "executor",
			Name:      "actions_total",
			Help:      "Counter of executed actions.",
		}, []string{"status"})

	opCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calvin",
			Subsystem: "executor",
			Name:      "ops_total",
			Help:      "Counter of applied ops.",
		}, []string{"type"})

	droppedReplyCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calvin",
			Subsystem: "executor",
			Name:      "dropped_replies_total",
			Help:      "Counter of replies that could not be delivered.",
		}, []string{"reason"})

	execDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "calvin",
			Subsystem: "executor",
			Name:      "duration_seconds",
			Help:      "Bucketed histogram of time (s) spent running one action.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
		})
)

func init() {
	prometheus.MustRegister(executedCounter)
	prometheus.MustRegister(opCounter)
	prometheus.MustRegister(droppedReplyCounter)
	prometheus.MustRegister(execDuration)
}
