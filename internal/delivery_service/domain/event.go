package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/core_domain"
)

// EventType is the kind of delivery event reported by the mail provider.
type EventType string

const (
	EventDelivered  EventType = "delivered"
	EventOpened     EventType = "opened"
	EventClicked    EventType = "clicked"
	EventBounced    EventType = "bounced"
	EventComplained EventType = "complained"
)

// DeliveryStatus maps the event type to the send-log status it drives.
// Unknown types report false; providers add event types without notice.
func (t EventType) DeliveryStatus() (core_domain.DeliveryStatus, bool) {
	switch t {
	case EventDelivered:
		return core_domain.DeliveryStatusDelivered, true
	case EventOpened:
		return core_domain.DeliveryStatusOpened, true
	case EventClicked:
		return core_domain.DeliveryStatusClicked, true
	case EventBounced:
		return core_domain.DeliveryStatusBounced, true
	case EventComplained:
		return core_domain.DeliveryStatusComplained, true
	default:
		return "", false
	}
}

// EventMeta carries the optional engagement context of a delivery event.
type EventMeta struct {
	UserAgent string
	Location  string
}

// EngagementEvent is the immutable detail record appended for every accepted
// delivery event. The send log keeps first-occurrence summary timestamps;
// the detail rows keep the full history.
type EngagementEvent struct {
	ID         uuid.UUID `json:"id"`
	SendLogID  uuid.UUID `json:"send_log_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
