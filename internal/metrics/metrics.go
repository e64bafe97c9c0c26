package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailSendDuration tracks the latency of individual delivery attempts
	EmailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_send_duration_seconds",
			Help:    "Duration of individual email delivery attempts in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"result"}, // sent or failed
	)

	// EmailsProcessed counts settled email status rows
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_processed_total",
			Help: "Email status rows settled, by terminal result",
		},
		[]string{"result"},
	)

	// CampaignsFinalized counts campaign finalizations by terminal status
	CampaignsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaigns_finalized_total",
			Help: "Campaigns settled into a terminal status",
		},
		[]string{"status"},
	)

	// SendJobRetries counts send job attempts handed back for retry
	SendJobRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "send_job_retries_total",
			Help: "Send job executions that failed and were handed back to the dispatcher",
		},
	)
)

// RecordSendDuration records one delivery attempt
func RecordSendDuration(result string, seconds float64) {
	EmailSendDuration.WithLabelValues(result).Observe(seconds)
}
