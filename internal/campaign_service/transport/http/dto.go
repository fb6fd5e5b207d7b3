package http

import (
	"time"

	"github.com/cleardue/golang_services/internal/campaign_service/domain"
)

type CreateCampaignRequestDTO struct {
	CompanyID string `json:"company_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,min=1,max=200"`
}

type RecipientDTO struct {
	Email      string   `json:"email" validate:"required,email"`
	Subject    string   `json:"subject" validate:"required"`
	Body       string   `json:"body" validate:"required"`
	CustomerID *string  `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	InvoiceIDs []string `json:"invoice_ids" validate:"required,min=1,dive,uuid"`
}

type StartCampaignRequestDTO struct {
	Recipients []RecipientDTO `json:"recipients" validate:"required,min=1,dive"`
}

type CampaignDTO struct {
	ID              string     `json:"id"`
	CompanyID       string     `json:"company_id"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	StatusReason    *string    `json:"status_reason,omitempty"`
	TotalRecipients int        `json:"total_recipients"`
	SentCount       int        `json:"sent_count"`
	FailedCount     int        `json:"failed_count"`
	SkippedCount    int        `json:"skipped_count"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	PausedAt        *time.Time `json:"paused_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ProgressDTO struct {
	CampaignID              string  `json:"campaign_id"`
	Status                  string  `json:"status"`
	StatusReason            *string `json:"status_reason,omitempty"`
	Total                   int     `json:"total"`
	Attempted               int     `json:"attempted"`
	Sent                    int     `json:"sent"`
	Failed                  int     `json:"failed"`
	Skipped                 int     `json:"skipped"`
	PercentComplete         float64 `json:"percent_complete"`
	EstimatedRemainingSecs  float64 `json:"estimated_remaining_seconds"`
}

func campaignToDTO(c *domain.Campaign) CampaignDTO {
	return CampaignDTO{
		ID:              c.ID.String(),
		CompanyID:       c.CompanyID.String(),
		Name:            c.Name,
		Status:          string(c.Status),
		StatusReason:    c.StatusReason,
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		FailedCount:     c.FailedCount,
		SkippedCount:    c.SkippedCount,
		StartedAt:       c.StartedAt,
		PausedAt:        c.PausedAt,
		CompletedAt:     c.CompletedAt,
		CreatedAt:       c.CreatedAt,
	}
}

func progressToDTO(p *domain.Progress) ProgressDTO {
	return ProgressDTO{
		CampaignID:             p.CampaignID.String(),
		Status:                 string(p.Status),
		StatusReason:           p.StatusReason,
		Total:                  p.Total,
		Attempted:              p.Attempted,
		Sent:                   p.Sent,
		Failed:                 p.Failed,
		Skipped:                p.Skipped,
		PercentComplete:        p.PercentComplete,
		EstimatedRemainingSecs: p.EstimatedRemaining.Seconds(),
	}
}
