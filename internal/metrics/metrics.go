package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the lifecycle collectors.
type Metrics struct {
	Operations       *prometheus.CounterVec
	Duration         *prometheus.HistogramVec
	CallbacksApplied prometheus.Counter
	CallbacksIgnored *prometheus.CounterVec
	RetryConflicts   prometheus.Counter
}

// New creates the collectors and registers them with reg when non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicamp",
			Name:      "operations_total",
			Help:      "Lifecycle operations by name and result code.",
		}, []string{"operation", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medicamp",
			Name:      "operation_duration_seconds",
			Help:      "Lifecycle operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		CallbacksApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medicamp",
			Name:      "payment_callbacks_applied_total",
			Help:      "Payment callbacks that moved a registration to paid.",
		}),
		CallbacksIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medicamp",
			Name:      "payment_callbacks_ignored_total",
			Help:      "Payment callbacks that caused no state change, by reason.",
		}, []string{"reason"}),
		RetryConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medicamp",
			Name:      "version_conflicts_total",
			Help:      "Optimistic version conflicts that forced a re-read.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Duration, m.CallbacksApplied, m.CallbacksIgnored, m.RetryConflicts)
	}
	return m
}
