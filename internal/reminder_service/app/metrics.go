package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reminder",
			Name:      "evaluations_total",
			Help:      "Total company reminder evaluation passes.",
		},
	)
	invoicesMarkedOverdueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reminder",
			Name:      "invoices_marked_overdue_total",
			Help:      "Invoices flipped from sent to overdue by the status-sync pass.",
		},
	)
	candidatesEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reminder",
			Name:      "consolidation_candidates_total",
			Help:      "Consolidation candidates computed, labelled by eligibility outcome.",
		},
		[]string{"outcome"},
	)
	autoCampaignsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reminder",
			Name:      "auto_campaigns_started_total",
			Help:      "Campaigns started automatically from in-window auto-send buckets.",
		},
	)
)
