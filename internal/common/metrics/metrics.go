// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	ProgressRecalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_recalculations_total",
			Help: "Milestone and booking progress recalculations",
		},
		[]string{"scope", "status"},
	)

	AnalyticsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_analytics_cache_lookups_total",
			Help: "Progress analytics cache lookups by result",
		},
		[]string{"result"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications persisted, labelled by category and whether delivery was queued",
		},
		[]string{"category", "delivery"},
	)

	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_deliveries_total",
			Help: "Email delivery attempts by outcome",
		},
		[]string{"status"},
	)

	SMSDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_deliveries_total",
			Help: "SMS delivery attempts by outcome",
		},
		[]string{"status"},
	)

	DispatchDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_jobs_dropped_total",
			Help: "Delivery jobs dropped because the queue was full",
		},
	)

	DispatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_job_failures_total",
			Help: "Delivery jobs whose handler returned an error",
		},
	)

	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Row-change events by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	RealtimeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_upstream_subscriptions",
			Help: "Open upstream change subscriptions",
		},
	)
)
