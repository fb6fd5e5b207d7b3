package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveryEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "delivery",
		Name:      "events_total",
		Help:      "Delivery events received, labelled by event type and processing result.",
	},
	[]string{"event_type", "result"},
)

const (
	resultApplied        = "applied"
	resultIgnored        = "ignored"
	resultUnknownMessage = "unknown_message"
	resultUnknownType    = "unknown_type"
	resultError          = "error"
)
