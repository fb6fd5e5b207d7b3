package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/campaign_service/domain"
	"github.com/cleardue/golang_services/internal/campaign_service/repository"
	"github.com/cleardue/golang_services/internal/core_domain"
)

type pgSendLogRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPgSendLogRepository creates a SendLogRepository backed by PostgreSQL.
func NewPgSendLogRepository(db DBPool, logger *slog.Logger) repository.SendLogRepository {
	return &pgSendLogRepository{db: db, logger: logger.With("component", "send_log_repository_pg")}
}

const insertSendLogQuery = `
	INSERT INTO send_logs (id, company_id, campaign_id, customer_id, invoice_id, covered_invoice_ids,
	                       recipient_email, subject, body, status, provider_name, provider_message_id,
	                       retry_count, error_message, queued_at, sent_at, failed_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`

// counterColumn maps a recipient outcome to the campaign counter it bumps.
func counterColumn(state domain.RecipientState) (string, error) {
	switch state {
	case domain.RecipientStateSent:
		return "sent_count", nil
	case domain.RecipientStateFailed:
		return "failed_count", nil
	case domain.RecipientStateSkipped:
		return "skipped_count", nil
	default:
		return "", fmt.Errorf("recipient state %q is not a recordable outcome", state)
	}
}

// RecordAttempt commits the send log insert, the recipient state change and
// the campaign counter increment in one transaction, so the persisted
// counters the progress view reads never drift from the snapshot rows.
func (r *pgSendLogRepository) RecordAttempt(ctx context.Context, log *core_domain.SendLog, recipientID uuid.UUID, state domain.RecipientState) error {
	column, err := counterColumn(state)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning record-attempt tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertSendLogQuery,
		log.ID, log.CompanyID, log.CampaignID, log.CustomerID, log.InvoiceID, log.CoveredInvoiceIDs,
		log.RecipientEmail, log.Subject, log.Body, log.Status, log.ProviderName, log.ProviderMessageID,
		log.RetryCount, log.ErrorMessage, log.QueuedAt, log.SentAt, log.FailedAt, log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting send log %s: %w", log.ID, err)
	}

	attemptedAt := log.UpdatedAt
	_, err = tx.Exec(ctx, `
		UPDATE campaign_recipients
		SET state = $2, send_log_id = $3, attempted_at = $4
		WHERE id = $1
	`, recipientID, state, log.ID, attemptedAt)
	if err != nil {
		return fmt.Errorf("updating recipient %s state: %w", recipientID, err)
	}

	// column comes from counterColumn, never from input.
	counterQuery := fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1, updated_at = $2 WHERE id = $1`, column, column)
	_, err = tx.Exec(ctx, counterQuery, log.CampaignID, attemptedAt)
	if err != nil {
		return fmt.Errorf("incrementing campaign %s counter: %w", log.CampaignID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing record-attempt tx: %w", err)
	}
	return nil
}

func (r *pgSendLogRepository) CreateStandalone(ctx context.Context, log *core_domain.SendLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.UpdatedAt.IsZero() {
		log.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, insertSendLogQuery,
		log.ID, log.CompanyID, log.CampaignID, log.CustomerID, log.InvoiceID, log.CoveredInvoiceIDs,
		log.RecipientEmail, log.Subject, log.Body, log.Status, log.ProviderName, log.ProviderMessageID,
		log.RetryCount, log.ErrorMessage, log.QueuedAt, log.SentAt, log.FailedAt, log.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to insert send log", "send_log_id", log.ID, "error", err)
		return fmt.Errorf("inserting send log %s: %w", log.ID, err)
	}
	return nil
}
