package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/campaign_service/domain"
	"github.com/cleardue/golang_services/internal/core_domain"
)

// CampaignRepository persists campaigns and their recipient snapshots.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)

	// StartSending atomically performs the draft->sending transition and
	// freezes the recipient snapshot in the same transaction. It reports
	// false when the campaign is not in draft, in which case nothing is
	// written.
	StartSending(ctx context.Context, campaignID uuid.UUID, recipients []*domain.Recipient, startedAt time.Time) (bool, error)

	// TransitionStatus performs a compare-and-set status change, recording
	// the reason and the transition timestamp. It reports false when the
	// campaign was not in the expected from status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus, reason *string, at time.Time) (bool, error)

	// ListPendingRecipients returns the unattempted snapshot rows in
	// position order, so resume continues instead of resending.
	ListPendingRecipients(ctx context.Context, campaignID uuid.UUID) ([]*domain.Recipient, error)
}

// SendLogRepository persists send attempts. RecordAttempt must commit the
// send log row, the recipient state change and the campaign counter
// increment in a single transaction.
type SendLogRepository interface {
	RecordAttempt(ctx context.Context, log *core_domain.SendLog, recipientID uuid.UUID, state domain.RecipientState) error

	// CreateStandalone persists an ad hoc send log not owned by a campaign.
	CreateStandalone(ctx context.Context, log *core_domain.SendLog) error
}

// QuotaRepository maintains the company-scoped daily send quota. The counter
// is shared between concurrent campaigns and ad hoc sends of one company, so
// consumption must be atomic.
type QuotaRepository interface {
	// TryConsume atomically reserves n sends from the company's quota for
	// the given day, against the configured daily limit. It reports false,
	// reserving nothing, when fewer than n sends remain.
	TryConsume(ctx context.Context, companyID uuid.UUID, day time.Time, n int, dailyLimit int) (bool, error)
}
