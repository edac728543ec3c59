package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	actionEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calvin",
			Subsystem: "scheduler",
			Name:      "action_event_total",
			Help:      "Counter of action lifecycle events.",
		}, []string{"event"})

	dispatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calvin",
			Subsystem: "scheduler",
			Name:      "dispatch_total",
			Help:      "Counter of actions handed to the executor, by how they became runnable.",
		}, []string{"path"})

	actionStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "calvin",
			Subsystem: "scheduler",
			Name:      "actions",
			Help:      "Number of actions in each state.",
		}, []string{"type"})

	safeVersionGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "calvin",
			Subsystem: "scheduler",
			Name:      "safe_version",
			Help:      "Every version below this one has been retired locally.",
		})

	lockWaitHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "calvin",
			Subsystem: "scheduler",
			Name:      "lock_wait_duration_seconds",
			Help:      "Bucketed histogram of time (s) from admission to dispatch.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
		})
)

func init() {
	prometheus.MustRegister(actionEventCounter)
	prometheus.MustRegister(dispatchCounter)
	prometheus.MustRegister(actionStatusGauge)
	prometheus.MustRegister(safeVersionGauge)
	prometheus.MustRegister(lockWaitHistogram)
}
