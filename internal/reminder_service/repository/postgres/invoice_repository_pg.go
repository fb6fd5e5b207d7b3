package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/reminder_service/repository"
)

// DBPool is the subset of pgxpool.Pool the repositories use. pgxmock's
// PgxPoolIface satisfies it, so repository tests run against a mock pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgInvoiceRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPgInvoiceRepository creates an InvoiceRepository backed by PostgreSQL.
func NewPgInvoiceRepository(db DBPool, logger *slog.Logger) repository.InvoiceRepository {
	return &pgInvoiceRepository{db: db, logger: logger.With("component", "invoice_repository_pg")}
}

func (r *pgInvoiceRepository) ListOpenByCompany(ctx context.Context, companyID uuid.UUID) ([]*core_domain.Invoice, error) {
	query := `
		SELECT id, company_id, customer_id, number, amount_minor, currency, due_date,
		       status, last_reminder_at, retired_at, created_at, updated_at
		FROM invoices
		WHERE company_id = $1 AND retired_at IS NULL AND status NOT IN ($2, $3)
		ORDER BY due_date ASC
	`
	rows, err := r.db.Query(ctx, query, companyID,
		core_domain.InvoiceStatusPaid, core_domain.InvoiceStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("querying open invoices for company %s: %w", companyID, err)
	}
	defer rows.Close()

	var invoices []*core_domain.Invoice
	for rows.Next() {
		var inv core_domain.Invoice
		err := rows.Scan(
			&inv.ID, &inv.CompanyID, &inv.CustomerID, &inv.Number, &inv.AmountMinor, &inv.Currency, &inv.DueDate,
			&inv.Status, &inv.LastReminderAt, &inv.RetiredAt, &inv.CreatedAt, &inv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice row: %w", err)
		}
		invoices = append(invoices, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

// MarkOverdue is the status-sync pass: sent invoices whose due date has
// passed become overdue. The comparison is date-only, matching the bucket
// classifier's calendar-day semantics.
func (r *pgInvoiceRepository) MarkOverdue(ctx context.Context, companyID uuid.UUID, today time.Time) (int64, error) {
	today = today.UTC()
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	tag, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET status = $3, updated_at = $4
		WHERE company_id = $1 AND status = $2 AND due_date < $5 AND retired_at IS NULL
	`, companyID, core_domain.InvoiceStatusSent, core_domain.InvoiceStatusOverdue, time.Now().UTC(), dayStart)
	if err != nil {
		return 0, fmt.Errorf("marking overdue invoices for company %s: %w", companyID, err)
	}
	if n := tag.RowsAffected(); n > 0 {
		r.logger.InfoContext(ctx, "invoices flipped to overdue", "company_id", companyID, "count", n)
		return n, nil
	}
	return 0, nil
}

func (r *pgInvoiceRepository) TouchLastReminder(ctx context.Context, invoiceIDs []uuid.UUID, at time.Time) error {
	if len(invoiceIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE invoices SET last_reminder_at = $2, updated_at = $2 WHERE id = ANY($1)
	`, invoiceIDs, at)
	if err != nil {
		return fmt.Errorf("stamping last reminder on %d invoices: %w", len(invoiceIDs), err)
	}
	return nil
}
