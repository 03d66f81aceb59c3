package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkRequestTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commissions_work_request_transitions_total",
		Help: "Total number of committed work request status transitions.",
	},
		[]string{"to_status"},
	)

	LifecycleErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commissions_lifecycle_errors_total",
		Help: "Total number of rejected lifecycle operations by operation and error code.",
	},
		[]string{"operation", "code"},
	)

	CancellationsAutoApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commissions_cancellations_auto_approved_total",
		Help: "Total number of cancellation requests approved by the timeout sweep.",
	})

	SweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commissions_sweep_failures_total",
		Help: "Total number of cancellation requests the sweep failed to process.",
	})

	EffectsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commissions_effects_processed_total",
		Help: "Total number of side effects dispatched, by kind and result.",
	},
		[]string{"kind", "result"},
	)

	EffectsDeadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commissions_effects_dead_total",
		Help: "Total number of side effects that exhausted their retry attempts.",
	},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commissions_http_requests_total",
		Help: "Total number of HTTP requests by route and status.",
	},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commissions_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"method", "route"},
	)
)
