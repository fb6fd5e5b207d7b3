package core_domain

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus defines the lifecycle states of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice represents a receivable owned by a company, optionally linked to a
// customer. Invoices are never deleted; RetiredAt marks soft retirement.
type Invoice struct {
	ID             uuid.UUID     `json:"id"`
	CompanyID      uuid.UUID     `json:"company_id"`
	CustomerID     *uuid.UUID    `json:"customer_id,omitempty"`
	Number         string        `json:"number"`
	AmountMinor    int64         `json:"amount_minor"` // minor currency units, e.g. cents
	Currency       string        `json:"currency"`
	DueDate        time.Time     `json:"due_date"`
	Status         InvoiceStatus `json:"status"`
	LastReminderAt *time.Time    `json:"last_reminder_at,omitempty"`
	RetiredAt      *time.Time    `json:"retired_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsOpen reports whether the invoice still participates in reminder
// computation. Paid and cancelled invoices are excluded everywhere.
func (i *Invoice) IsOpen() bool {
	if i.RetiredAt != nil {
		return false
	}
	return i.Status != InvoiceStatusPaid && i.Status != InvoiceStatusCancelled
}
