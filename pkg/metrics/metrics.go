// Package metrics provides Prometheus instrumentation for workdist components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for workdist components.
// A nil *Registry is valid and records nothing.
type Registry struct {
	// Queue Metrics
	QueueDepth      *prometheus.GaugeVec
	QueueCapacity   *prometheus.GaugeVec
	ItemsEnqueued   *prometheus.CounterVec
	ItemsDequeued   *prometheus.CounterVec
	ItemsDiscarded  *prometheus.CounterVec
	BlockedEnqueues *prometheus.CounterVec

	// Result Channel Metrics
	ResultsSent     *prometheus.CounterVec
	ResultsReceived *prometheus.CounterVec
	ResultsPending  *prometheus.GaugeVec

	// Worker Pool Metrics
	WorkerPoolSize  *prometheus.GaugeVec
	WorkerStates    *prometheus.GaugeVec
	ComputeDuration *prometheus.HistogramVec

	// Supervisor Metrics
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	SinkErrors  *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by workdist components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a registry honoring the namespace and
// constant labels in cfg.
func NewRegistryWithConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(cfg.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(cfg.Labels, reg)
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Registry{
		// Queue Metrics
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Number of items waiting in the queue",
			},
			[]string{"queue_name"},
		),

		QueueCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "queue",
				Name:      "capacity",
				Help:      "Fixed capacity of the queue",
			},
			[]string{"queue_name"},
		),

		ItemsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "queue",
				Name:      "enqueued_total",
				Help:      "Total number of items accepted by the queue",
			},
			[]string{"queue_name"},
		),

		ItemsDequeued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "queue",
				Name:      "dequeued_total",
				Help:      "Total number of items handed to workers",
			},
			[]string{"queue_name"},
		),

		ItemsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "queue",
				Name:      "discarded_total",
				Help:      "Total number of pending items dropped by an abort",
			},
			[]string{"queue_name"},
		),

		BlockedEnqueues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "queue",
				Name:      "blocked_enqueues_total",
				Help:      "Total number of enqueues that waited for a free slot",
			},
			[]string{"queue_name"},
		),

		// Result Channel Metrics
		ResultsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "results",
				Name:      "sent_total",
				Help:      "Total number of results posted by workers",
			},
			[]string{"channel_name", "outcome"},
		),

		ResultsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "results",
				Name:      "received_total",
				Help:      "Total number of results taken by the consumer",
			},
			[]string{"channel_name"},
		),

		ResultsPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "results",
				Name:      "pending",
				Help:      "Number of results waiting for the consumer",
			},
			[]string{"channel_name"},
		),

		// Worker Pool Metrics
		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "size",
				Help:      "Number of workers in the pool",
			},
			[]string{"pool_name"},
		),

		WorkerStates: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "workers",
				Help:      "Number of workers in each state",
			},
			[]string{"pool_name", "state"},
		),

		ComputeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "compute_duration_seconds",
				Help:      "Time spent computing a single item",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name", "outcome"},
		),

		// Supervisor Metrics
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "supervisor",
				Name:      "runs_total",
				Help:      "Total number of supervised runs by final status",
			},
			[]string{"supervisor_name", "status"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "supervisor",
				Name:      "run_duration_seconds",
				Help:      "Wall time of a supervised run",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"supervisor_name"},
		),

		SinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "supervisor",
				Name:      "sink_errors_total",
				Help:      "Total number of results a sink failed to store",
			},
			[]string{"supervisor_name"},
		),
	}
}

// Outcome returns the outcome label value for a result error.
func Outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
