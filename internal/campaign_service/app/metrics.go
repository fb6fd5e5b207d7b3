package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	campaignsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "runs_started_total",
			Help:      "Total number of campaign execution loops started.",
		},
	)
	campaignTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "status_transitions_total",
			Help:      "Total campaign status transitions, labelled by target status.",
		},
		[]string{"to_status"},
	)
	batchesDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "batches_dispatched_total",
			Help:      "Total recipient batches dispatched to the mail provider.",
		},
	)
	sendAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "send_attempts_total",
			Help:      "Total individual send outcomes, labelled by result.",
		},
		[]string{"outcome"},
	)
	providerSendDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "campaign",
			Name:      "provider_send_duration_seconds",
			Help:      "Duration of mail provider send calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)
