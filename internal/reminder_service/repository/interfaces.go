package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/reminder_service/domain"
)

// InvoiceRepository gives the evaluation pass its view of a company's
// receivables.
type InvoiceRepository interface {
	// ListOpenByCompany returns unretired invoices that are neither paid nor
	// cancelled.
	ListOpenByCompany(ctx context.Context, companyID uuid.UUID) ([]*core_domain.Invoice, error)

	// MarkOverdue flips sent invoices past their due date to overdue and
	// reports how many rows changed. Run at the start of every evaluation.
	MarkOverdue(ctx context.Context, companyID uuid.UUID, today time.Time) (int64, error)

	// TouchLastReminder stamps the invoices covered by a just-started
	// campaign, so the contact-interval check sees them next evaluation.
	TouchLastReminder(ctx context.Context, invoiceIDs []uuid.UUID, at time.Time) error
}

// CustomerRepository resolves a company's customers for grouping and
// consolidation preferences.
type CustomerRepository interface {
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*core_domain.Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Customer, error)
}

// BucketConfigRepository persists per-company, per-bucket sending policy.
type BucketConfigRepository interface {
	// EnsureDefaults provisions the manual-only default rows for buckets the
	// company has no config for yet. Existing rows are never touched.
	EnsureDefaults(ctx context.Context, companyID uuid.UUID, now time.Time) error

	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.BucketConfig, error)
}
