package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/delivery_service/domain"
	"github.com/cleardue/golang_services/internal/delivery_service/repository"
)

// DBPool is the subset of pgxpool.Pool the repository uses. pgxmock's
// PgxPoolIface satisfies it, so repository tests run against a mock pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgDeliveryRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPgDeliveryRepository creates a DeliveryRepository backed by PostgreSQL.
func NewPgDeliveryRepository(db DBPool, logger *slog.Logger) repository.DeliveryRepository {
	return &pgDeliveryRepository{db: db, logger: logger.With("component", "delivery_repository_pg")}
}

func (r *pgDeliveryRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*core_domain.SendLog, error) {
	query := `
		SELECT id, company_id, campaign_id, customer_id, invoice_id, covered_invoice_ids,
		       recipient_email, subject, body, status, provider_name, provider_message_id,
		       retry_count, error_message, queued_at, sent_at, delivered_at, opened_at,
		       clicked_at, bounced_at, complained_at, failed_at, updated_at
		FROM send_logs WHERE provider_message_id = $1
	`
	var log core_domain.SendLog
	err := r.db.QueryRow(ctx, query, providerMessageID).Scan(
		&log.ID, &log.CompanyID, &log.CampaignID, &log.CustomerID, &log.InvoiceID, &log.CoveredInvoiceIDs,
		&log.RecipientEmail, &log.Subject, &log.Body, &log.Status, &log.ProviderName, &log.ProviderMessageID,
		&log.RetryCount, &log.ErrorMessage, &log.QueuedAt, &log.SentAt, &log.DeliveredAt, &log.OpenedAt,
		&log.ClickedAt, &log.BouncedAt, &log.ComplainedAt, &log.FailedAt, &log.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSendLogNotFound
		}
		return nil, fmt.Errorf("scanning send log for provider message id %s: %w", providerMessageID, err)
	}
	return &log, nil
}

// ApplyEvent commits the guarded status update and the detail insert in one
// transaction. COALESCE keeps the first-occurrence timestamps stable under
// duplicate events that slip past the processor's pre-check.
func (r *pgDeliveryRepository) ApplyEvent(ctx context.Context, log *core_domain.SendLog, expected core_domain.DeliveryStatus, event *domain.EngagementEvent) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning apply-event tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE send_logs
		SET status = $3,
		    delivered_at = COALESCE(delivered_at, $4),
		    opened_at = COALESCE(opened_at, $5),
		    clicked_at = COALESCE(clicked_at, $6),
		    bounced_at = COALESCE(bounced_at, $7),
		    complained_at = COALESCE(complained_at, $8),
		    updated_at = $9
		WHERE id = $1 AND status = $2
	`, log.ID, expected, log.Status,
		log.DeliveredAt, log.OpenedAt, log.ClickedAt, log.BouncedAt, log.ComplainedAt,
		log.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("updating send log %s status: %w", log.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO engagement_events (id, send_log_id, event_type, occurred_at, user_agent, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.SendLogID, event.Type, event.OccurredAt, event.UserAgent, event.Location, event.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting engagement event for send log %s: %w", log.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing apply-event tx: %w", err)
	}
	return true, nil
}
