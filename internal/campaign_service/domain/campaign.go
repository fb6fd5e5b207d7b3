package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus defines the lifecycle states of a reminder campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is a legal lifecycle
// transition. completed and failed are terminal.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case CampaignStatusDraft:
		return next == CampaignStatusSending
	case CampaignStatusSending:
		return next == CampaignStatusPaused || next == CampaignStatusCompleted || next == CampaignStatusFailed
	case CampaignStatusPaused:
		return next == CampaignStatusSending || next == CampaignStatusFailed
	default:
		return false
	}
}

// Pause reasons recorded on the campaign when the run loop stops early.
const (
	PauseReasonRequested      = "pause_requested"
	PauseReasonQuotaExhausted = "daily_send_quota_exhausted"
)

// Campaign is a batch reminder-sending operation. It owns an ordered,
// immutable recipient snapshot frozen at the draft->sending transition;
// later invoice or customer changes do not alter an in-flight campaign.
type Campaign struct {
	ID           uuid.UUID      `json:"id"`
	CompanyID    uuid.UUID      `json:"company_id"`
	Name         string         `json:"name"`
	Status       CampaignStatus `json:"status"`
	StatusReason *string        `json:"status_reason,omitempty"`

	TotalRecipients int `json:"total_recipients"`
	SentCount       int `json:"sent_count"`
	FailedCount     int `json:"failed_count"`
	SkippedCount    int `json:"skipped_count"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	ResumedAt   *time.Time `json:"resumed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AttemptedCount is the number of recipients with a recorded outcome.
func (c *Campaign) AttemptedCount() int {
	return c.SentCount + c.FailedCount + c.SkippedCount
}

// RecipientState tracks a snapshot row through the run loop.
type RecipientState string

const (
	RecipientStatePending RecipientState = "pending"
	RecipientStateSent    RecipientState = "sent"
	RecipientStateFailed  RecipientState = "failed"
	RecipientStateSkipped RecipientState = "skipped"
)

// Recipient is one row of a campaign's frozen snapshot: either a single
// invoice reminder or a consolidated one covering several invoices.
type Recipient struct {
	ID         uuid.UUID  `json:"id"`
	CampaignID uuid.UUID  `json:"campaign_id"`
	Position   int        `json:"position"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	InvoiceIDs []string   `json:"invoice_ids"`

	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`

	State       RecipientState `json:"state"`
	SendLogID   *uuid.UUID     `json:"send_log_id,omitempty"`
	AttemptedAt *time.Time     `json:"attempted_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Progress is the pull-based view of a running campaign, computed from
// persisted counters so it survives restarts and can be polled by any
// number of observers.
type Progress struct {
	CampaignID         uuid.UUID      `json:"campaign_id"`
	Status             CampaignStatus `json:"status"`
	StatusReason       *string        `json:"status_reason,omitempty"`
	Total              int            `json:"total"`
	Attempted          int            `json:"attempted"`
	Sent               int            `json:"sent"`
	Failed             int            `json:"failed"`
	Skipped            int            `json:"skipped"`
	PercentComplete    float64        `json:"percent_complete"`
	EstimatedRemaining time.Duration  `json:"estimated_remaining"`
}
