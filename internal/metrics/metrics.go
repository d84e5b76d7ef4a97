package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_messages_sent_total",
			Help: "Total campaign messages sent",
		},
	)

	MessageFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_message_failures_total",
			Help: "Total permanently failed campaign messages",
		},
	)

	JobsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_jobs_cancelled_total",
			Help: "Total cancelled message jobs",
		},
	)

	EnrollmentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_enrollments_created_total",
			Help: "Total enrollments created",
		},
	)

	EnrollmentsPaused = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_enrollments_paused_total",
			Help: "Total enrollments paused by criteria drift",
		},
	)

	CampaignsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_completed_total",
			Help: "Total campaigns marked completed",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campaign_poll_tick_duration_seconds",
			Help:    "Duration of job executor poll ticks",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Init() {
	prometheus.MustRegister(
		MessagesSent,
		MessageFailures,
		JobsCancelled,
		EnrollmentsCreated,
		EnrollmentsPaused,
		CampaignsCompleted,
		TickDuration,
	)
}
