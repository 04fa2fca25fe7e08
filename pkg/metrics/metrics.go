package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	TxRetries *prometheus.CounterVec

	// Mortuary domain metrics
	StorageOperations    *prometheus.CounterVec
	LifecycleTransitions *prometheus.CounterVec
	UnclaimedSweepRuns   *prometheus.CounterVec
	UnclaimedMarked      prometheus.Counter
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg registers with the default prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of outbox events that exhausted their retries",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing one outbox batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		TxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "transaction_retries_total",
			Help:      "Transactions retried after a serialization failure or deadlock",
		}, []string{"sqlstate"}),

		StorageOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage assignment operations by outcome",
		}, []string{"operation", "outcome"}),
		LifecycleTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Patient status changes by triggering event",
		}, []string{"event", "to"}),
		UnclaimedSweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unclaimed",
			Name:      "sweep_runs_total",
			Help:      "Unclaimed body sweep runs by outcome",
		}, []string{"outcome"}),
		UnclaimedMarked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unclaimed",
			Name:      "patients_marked_total",
			Help:      "Patients marked unclaimed by the sweep",
		}),
	}
}

// Noop returns metrics registered against a throwaway registry.
func Noop() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}

func (m *Metrics) StorageOp(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.StorageOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Transition(event, to string) {
	if m == nil {
		return
	}
	m.LifecycleTransitions.WithLabelValues(event, to).Inc()
}

func (m *Metrics) TxRetry(sqlstate string) {
	if m == nil {
		return
	}
	m.TxRetries.WithLabelValues(sqlstate).Inc()
}
