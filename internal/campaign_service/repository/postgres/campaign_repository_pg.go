package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cleardue/golang_services/internal/campaign_service/domain"
	"github.com/cleardue/golang_services/internal/campaign_service/repository"
)

type pgCampaignRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPgCampaignRepository creates a CampaignRepository backed by PostgreSQL.
func NewPgCampaignRepository(db DBPool, logger *slog.Logger) repository.CampaignRepository {
	return &pgCampaignRepository{db: db, logger: logger.With("component", "campaign_repository_pg")}
}

const campaignColumns = `id, company_id, name, status, status_reason,
       total_recipients, sent_count, failed_count, skipped_count,
       started_at, paused_at, resumed_at, completed_at, created_at, updated_at`

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.Status, &c.StatusReason,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount, &c.SkippedCount,
		&c.StartedAt, &c.PausedAt, &c.ResumedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *pgCampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	if campaign.ID == uuid.Nil {
		campaign.ID = uuid.New()
	}
	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	if campaign.Status == "" {
		campaign.Status = domain.CampaignStatusDraft
	}

	query := `
		INSERT INTO campaigns (id, company_id, name, status, status_reason,
		                       total_recipients, sent_count, failed_count, skipped_count,
		                       created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		campaign.ID, campaign.CompanyID, campaign.Name, campaign.Status, campaign.StatusReason,
		campaign.TotalRecipients, campaign.SentCount, campaign.FailedCount, campaign.SkippedCount,
		campaign.CreatedAt, campaign.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to insert campaign", "campaign_id", campaign.ID, "error", err)
		return fmt.Errorf("inserting campaign: %w", err)
	}
	return nil
}

func (r *pgCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	campaign, err := scanCampaign(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("scanning campaign %s: %w", id, err)
	}
	return campaign, nil
}

// StartSending performs the draft to sending transition and freezes the
// recipient snapshot in the same transaction. The guarded UPDATE is the
// compare-and-set: zero rows affected means the campaign was not in draft
// and nothing is written.
func (r *pgCampaignRepository) StartSending(ctx context.Context, campaignID uuid.UUID, recipients []*domain.Recipient, startedAt time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning start-sending tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE campaigns
		SET status = $2, started_at = $3, total_recipients = $4, updated_at = $3
		WHERE id = $1 AND status = $5
	`, campaignID, domain.CampaignStatusSending, startedAt, len(recipients), domain.CampaignStatusDraft)
	if err != nil {
		return false, fmt.Errorf("transitioning campaign %s to sending: %w", campaignID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	insertQuery := `
		INSERT INTO campaign_recipients (id, campaign_id, position, customer_id, invoice_ids,
		                                 email, subject, body, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, rec := range recipients {
		_, err := tx.Exec(ctx, insertQuery,
			rec.ID, rec.CampaignID, rec.Position, rec.CustomerID, rec.InvoiceIDs,
			rec.Email, rec.Subject, rec.Body, rec.State, rec.CreatedAt,
		)
		if err != nil {
			return false, fmt.Errorf("inserting recipient snapshot row %d: %w", rec.Position, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing start-sending tx: %w", err)
	}
	return true, nil
}

func (r *pgCampaignRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus, reason *string, at time.Time) (bool, error) {
	query := `UPDATE campaigns SET status = $3, status_reason = $4, updated_at = $5`
	switch to {
	case domain.CampaignStatusPaused:
		query += `, paused_at = $5`
	case domain.CampaignStatusSending:
		query += `, resumed_at = $5`
	case domain.CampaignStatusCompleted, domain.CampaignStatusFailed:
		query += `, completed_at = $5`
	}
	query += ` WHERE id = $1 AND status = $2`

	tag, err := r.db.Exec(ctx, query, id, from, to, reason, at)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to transition campaign status",
			"campaign_id", id, "from", from, "to", to, "error", err)
		return false, fmt.Errorf("transitioning campaign %s from %s to %s: %w", id, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgCampaignRepository) ListPendingRecipients(ctx context.Context, campaignID uuid.UUID) ([]*domain.Recipient, error) {
	query := `
		SELECT id, campaign_id, position, customer_id, invoice_ids,
		       email, subject, body, state, send_log_id, attempted_at, created_at
		FROM campaign_recipients
		WHERE campaign_id = $1 AND state = $2
		ORDER BY position ASC
	`
	rows, err := r.db.Query(ctx, query, campaignID, domain.RecipientStatePending)
	if err != nil {
		return nil, fmt.Errorf("querying pending recipients for campaign %s: %w", campaignID, err)
	}
	defer rows.Close()

	var recipients []*domain.Recipient
	for rows.Next() {
		var rec domain.Recipient
		err := rows.Scan(
			&rec.ID, &rec.CampaignID, &rec.Position, &rec.CustomerID, &rec.InvoiceIDs,
			&rec.Email, &rec.Subject, &rec.Body, &rec.State, &rec.SendLogID, &rec.AttemptedAt, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning recipient row: %w", err)
		}
		recipients = append(recipients, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recipients, nil
}
