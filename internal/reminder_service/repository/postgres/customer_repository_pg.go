package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/reminder_service/domain"
	"github.com/cleardue/golang_services/internal/reminder_service/repository"
)

type pgCustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPgCustomerRepository creates a CustomerRepository backed by PostgreSQL.
func NewPgCustomerRepository(db DBPool, logger *slog.Logger) repository.CustomerRepository {
	return &pgCustomerRepository{db: db, logger: logger.With("component", "customer_repository_pg")}
}

const customerColumns = `id, company_id, name, email, consolidation_enabled,
       consolidation_min_count, min_contact_interval_days, created_at, updated_at`

func scanCustomer(row pgx.Row) (*core_domain.Customer, error) {
	var c core_domain.Customer
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.ConsolidationEnabled,
		&c.ConsolidationMinCount, &c.MinContactIntervalDays, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *pgCustomerRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*core_domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE company_id = $1 ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("querying customers for company %s: %w", companyID, err)
	}
	defer rows.Close()

	var customers []*core_domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer row: %w", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *pgCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	customer, err := scanCustomer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("scanning customer %s: %w", id, err)
	}
	return customer, nil
}
