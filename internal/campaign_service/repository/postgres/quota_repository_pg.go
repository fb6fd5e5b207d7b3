package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/campaign_service/repository"
)

type pgQuotaRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPgQuotaRepository creates a QuotaRepository backed by PostgreSQL.
func NewPgQuotaRepository(db DBPool, logger *slog.Logger) repository.QuotaRepository {
	return &pgQuotaRepository{db: db, logger: logger.With("component", "quota_repository_pg")}
}

// TryConsume reserves n sends from the company's day-keyed counter. The row
// is created lazily; the guarded UPDATE is atomic, so concurrent campaigns
// of one company never overshoot the limit.
func (r *pgQuotaRepository) TryConsume(ctx context.Context, companyID uuid.UUID, day time.Time, n int, dailyLimit int) (bool, error) {
	day = day.UTC()
	dayKey := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO company_send_quotas (company_id, day, used, updated_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (company_id, day) DO NOTHING
	`, companyID, dayKey, now)
	if err != nil {
		return false, fmt.Errorf("ensuring quota row for company %s: %w", companyID, err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE company_send_quotas
		SET used = used + $3, updated_at = $5
		WHERE company_id = $1 AND day = $2 AND used + $3 <= $4
	`, companyID, dayKey, n, dailyLimit, now)
	if err != nil {
		return false, fmt.Errorf("consuming quota for company %s: %w", companyID, err)
	}
	granted := tag.RowsAffected() == 1
	if !granted {
		r.logger.InfoContext(ctx, "daily send quota refused",
			"company_id", companyID, "day", dayKey.Format(time.DateOnly), "requested", n, "limit", dailyLimit)
	}
	return granted, nil
}
