package core_domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus defines the delivery lifecycle of a send-log record.
//
// Forward progression: queued -> sent -> delivered -> opened -> clicked.
// Terminal branches from sent: bounced, complained. failed is set by the
// campaign engine after the retry budget is exhausted, never by webhooks.
type DeliveryStatus string

const (
	DeliveryStatusQueued     DeliveryStatus = "queued"
	DeliveryStatusSent       DeliveryStatus = "sent"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusOpened     DeliveryStatus = "opened"
	DeliveryStatusClicked    DeliveryStatus = "clicked"
	DeliveryStatusBounced    DeliveryStatus = "bounced"
	DeliveryStatusFailed     DeliveryStatus = "failed"
	DeliveryStatusComplained DeliveryStatus = "complained"
)

// forwardRank orders the forward progression. Terminal and unknown statuses
// have no rank.
func (s DeliveryStatus) forwardRank() (int, bool) {
	switch s {
	case DeliveryStatusQueued:
		return 0, true
	case DeliveryStatusSent:
		return 1, true
	case DeliveryStatusDelivered:
		return 2, true
	case DeliveryStatusOpened:
		return 3, true
	case DeliveryStatusClicked:
		return 4, true
	default:
		return 0, false
	}
}

// IsTerminal reports whether no further transition is legal from s.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryStatusBounced, DeliveryStatusFailed, DeliveryStatusComplained:
		return true
	default:
		return false
	}
}

// CanAdvanceTo reports whether moving from s to next is a legal, strictly
// advancing transition. Webhook delivery is at-least-once and out-of-order,
// so anything non-advancing must be a no-op for the caller.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case DeliveryStatusBounced, DeliveryStatusComplained:
		// Bounce and complaint only branch off before delivery is confirmed.
		return s == DeliveryStatusQueued || s == DeliveryStatusSent
	}
	curRank, ok := s.forwardRank()
	if !ok {
		return false
	}
	nextRank, ok := next.forwardRank()
	if !ok {
		return false
	}
	return nextRank > curRank
}

// SendLog is the durable record of one email send attempt and its delivery
// history. Created once per attempt, updated in place by webhook events,
// never deleted.
type SendLog struct {
	ID         uuid.UUID  `json:"id"`
	CompanyID  uuid.UUID  `json:"company_id"`
	CampaignID *uuid.UUID `json:"campaign_id,omitempty"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	InvoiceID  *uuid.UUID `json:"invoice_id,omitempty"`
	// CoveredInvoiceIDs references the invoice set of a consolidated reminder.
	CoveredInvoiceIDs []string `json:"covered_invoice_ids,omitempty"`

	RecipientEmail string `json:"recipient_email"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`

	Status            DeliveryStatus `json:"status"`
	ProviderName      string         `json:"provider_name"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty"` // unique, webhook correlation key
	RetryCount        int            `json:"retry_count"`
	ErrorMessage      *string        `json:"error_message,omitempty"`

	QueuedAt     time.Time  `json:"queued_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	ClickedAt    *time.Time `json:"clicked_at,omitempty"`
	BouncedAt    *time.Time `json:"bounced_at,omitempty"`
	ComplainedAt *time.Time `json:"complained_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MarkStatus advances the log to status, recording the first-occurrence
// timestamp for the status reached. It does not validate the transition;
// callers check CanAdvanceTo first.
func (l *SendLog) MarkStatus(status DeliveryStatus, at time.Time) {
	l.Status = status
	switch status {
	case DeliveryStatusSent:
		if l.SentAt == nil {
			l.SentAt = &at
		}
	case DeliveryStatusDelivered:
		if l.DeliveredAt == nil {
			l.DeliveredAt = &at
		}
	case DeliveryStatusOpened:
		if l.OpenedAt == nil {
			l.OpenedAt = &at
		}
	case DeliveryStatusClicked:
		if l.ClickedAt == nil {
			l.ClickedAt = &at
		}
	case DeliveryStatusBounced:
		if l.BouncedAt == nil {
			l.BouncedAt = &at
		}
	case DeliveryStatusComplained:
		if l.ComplainedAt == nil {
			l.ComplainedAt = &at
		}
	case DeliveryStatusFailed:
		if l.FailedAt == nil {
			l.FailedAt = &at
		}
	}
	l.UpdatedAt = at
}
