package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportsCaptured tracks reports built from failures.
	ReportsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashkit_reports_captured_total",
			Help: "Total number of crash reports captured",
		},
	)

	// DeliveryAttempts tracks per-transport delivery attempts by outcome.
	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashkit_delivery_attempts_total",
			Help: "Total number of delivery attempts",
		},
		[]string{"transport", "outcome"},
	)

	// ReportsSpooled tracks reports written to the offline spool.
	ReportsSpooled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashkit_reports_spooled_total",
			Help: "Total number of reports persisted to the offline spool",
		},
	)

	// ReportsEvicted tracks reports dropped because the spool was full.
	ReportsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashkit_reports_evicted_total",
			Help: "Total number of spooled reports evicted by the size limit",
		},
	)

	// ReportsLost tracks the true-loss path: persist failed after every
	// transport failed.
	ReportsLost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashkit_reports_lost_total",
			Help: "Total number of reports dropped after spool persist failure",
		},
	)

	// SpoolPending tracks the current number of pending offline reports.
	SpoolPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crashkit_spool_pending_reports",
			Help: "Current number of reports waiting in the offline spool",
		},
	)

	// DrainDuration tracks how long a retry pass takes.
	DrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crashkit_drain_duration_seconds",
			Help:    "Duration of offline spool drain passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
