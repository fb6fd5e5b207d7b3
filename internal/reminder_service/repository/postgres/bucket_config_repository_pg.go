package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/reminder_service/domain"
	"github.com/cleardue/golang_services/internal/reminder_service/repository"
)

type pgBucketConfigRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPgBucketConfigRepository creates a BucketConfigRepository backed by
// PostgreSQL.
func NewPgBucketConfigRepository(db DBPool, logger *slog.Logger) repository.BucketConfigRepository {
	return &pgBucketConfigRepository{db: db, logger: logger.With("component", "bucket_config_repository_pg")}
}

// EnsureDefaults inserts the manual-only default row for every overdue
// bucket the company lacks. ON CONFLICT keeps rows the company has already
// customized untouched.
func (r *pgBucketConfigRepository) EnsureDefaults(ctx context.Context, companyID uuid.UUID, now time.Time) error {
	query := `
		INSERT INTO bucket_configs (id, company_id, bucket, auto_send_enabled, send_hour, allowed_weekdays, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (company_id, bucket) DO NOTHING
	`
	for _, cfg := range domain.DefaultBucketConfigs(companyID, now) {
		_, err := r.db.Exec(ctx, query,
			cfg.ID, cfg.CompanyID, cfg.Bucket, cfg.AutoSendEnabled, cfg.SendHour, int(cfg.AllowedWeekdays),
			cfg.CreatedAt, cfg.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("provisioning bucket config %s for company %s: %w", cfg.Bucket, companyID, err)
		}
	}
	return nil
}

func (r *pgBucketConfigRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.BucketConfig, error) {
	query := `
		SELECT id, company_id, bucket, auto_send_enabled, send_hour, allowed_weekdays, created_at, updated_at
		FROM bucket_configs WHERE company_id = $1
	`
	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("querying bucket configs for company %s: %w", companyID, err)
	}
	defer rows.Close()

	var configs []*domain.BucketConfig
	for rows.Next() {
		var cfg domain.BucketConfig
		var mask int
		err := rows.Scan(&cfg.ID, &cfg.CompanyID, &cfg.Bucket, &cfg.AutoSendEnabled, &cfg.SendHour, &mask,
			&cfg.CreatedAt, &cfg.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning bucket config row: %w", err)
		}
		cfg.AllowedWeekdays = domain.WeekdayMask(mask)
		configs = append(configs, &cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}
