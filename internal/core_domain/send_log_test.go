package core_domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryStatus_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		name string
		from DeliveryStatus
		to   DeliveryStatus
		want bool
	}{
		{"QueuedToSent", DeliveryStatusQueued, DeliveryStatusSent, true},
		{"SentToDelivered", DeliveryStatusSent, DeliveryStatusDelivered, true},
		{"SentSkipsToClicked", DeliveryStatusSent, DeliveryStatusClicked, true},
		{"DeliveredToOpened", DeliveryStatusDelivered, DeliveryStatusOpened, true},
		{"BackwardRejected", DeliveryStatusClicked, DeliveryStatusDelivered, false},
		{"SelfRejected", DeliveryStatusDelivered, DeliveryStatusDelivered, false},
		{"QueuedCanBounce", DeliveryStatusQueued, DeliveryStatusBounced, true},
		{"SentCanComplain", DeliveryStatusSent, DeliveryStatusComplained, true},
		{"DeliveredCannotBounce", DeliveryStatusDelivered, DeliveryStatusBounced, false},
		{"OpenedCannotComplain", DeliveryStatusOpened, DeliveryStatusComplained, false},
		{"BouncedIsTerminal", DeliveryStatusBounced, DeliveryStatusDelivered, false},
		{"FailedIsTerminal", DeliveryStatusFailed, DeliveryStatusSent, false},
		{"ComplainedIsTerminal", DeliveryStatusComplained, DeliveryStatusOpened, false},
		{"UnknownNextRejected", DeliveryStatusSent, DeliveryStatus("exploded"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestSendLog_MarkStatus_FirstOccurrenceTimestampsStable(t *testing.T) {
	log := &SendLog{Status: DeliveryStatusSent}

	first := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	log.MarkStatus(DeliveryStatusDelivered, first)
	require.NotNil(t, log.DeliveredAt)
	assert.Equal(t, first, *log.DeliveredAt)

	// A later duplicate moves updated_at but not the first-occurrence stamp.
	later := first.Add(time.Hour)
	log.MarkStatus(DeliveryStatusDelivered, later)
	assert.Equal(t, first, *log.DeliveredAt)
	assert.Equal(t, later, log.UpdatedAt)
}
