package domain

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/core_domain"
)

// IneligibilityReason explains why a consolidation candidate cannot be acted
// upon. An eligible candidate carries no reason.
type IneligibilityReason string

const (
	ReasonDisabled          IneligibilityReason = "disabled"
	ReasonBelowThreshold    IneligibilityReason = "below_threshold"
	ReasonContactedRecently IneligibilityReason = "contacted_recently"
)

// ConsolidationPolicy holds the company-level consolidation defaults. A
// customer's own preference values, when set, take precedence.
type ConsolidationPolicy struct {
	MinInvoiceCount        int `json:"min_invoice_count"`
	MinContactIntervalDays int `json:"min_contact_interval_days"`
}

// DefaultConsolidationPolicy returns the company-level defaults applied when
// no explicit policy is configured.
func DefaultConsolidationPolicy() ConsolidationPolicy {
	return ConsolidationPolicy{
		MinInvoiceCount:        2,
		MinContactIntervalDays: 7,
	}
}

// Candidate is a computed, not-yet-acted-upon consolidation decision for one
// customer. It is advisory: callers decide whether to act on it, and the
// evaluation mutates nothing, so it is safe to recompute on every tick.
type Candidate struct {
	CustomerID       uuid.UUID           `json:"customer_id"`
	CompanyID        uuid.UUID           `json:"company_id"`
	CustomerName     string              `json:"customer_name"`
	RecipientEmail   string              `json:"recipient_email"`
	InvoiceIDs       []uuid.UUID         `json:"invoice_ids"`
	InvoiceCount     int                 `json:"invoice_count"`
	TotalAmountMinor int64               `json:"total_amount_minor"`
	Currency         string              `json:"currency"`
	MostUrgentBucket BucketID            `json:"most_urgent_bucket"`
	DaysOverdue      int                 `json:"days_overdue"` // of the most urgent invoice
	PriorityScore    float64             `json:"priority_score"`
	Eligible         bool                `json:"eligible"`
	Reason           IneligibilityReason `json:"reason,omitempty"`
}

// EvaluateConsolidation decides whether a customer's open invoices should be
// grouped into one reminder and scores the result. Invoices whose bucket is
// not applicable are ignored. The customer's own thresholds override the
// company policy where set. Pure: no persisted state is read or written.
func EvaluateConsolidation(
	customer *core_domain.Customer,
	openInvoices []*core_domain.Invoice,
	policy ConsolidationPolicy,
	today time.Time,
) *Candidate {
	cand := &Candidate{
		CustomerID:       customer.ID,
		CompanyID:        customer.CompanyID,
		CustomerName:     customer.Name,
		RecipientEmail:   customer.Email,
		MostUrgentBucket: BucketNotApplicable,
	}

	var lastContact *time.Time
	for _, inv := range openInvoices {
		bucket := Classify(inv.DueDate, inv.Status, today)
		if bucket == BucketNotApplicable {
			continue
		}
		cand.InvoiceIDs = append(cand.InvoiceIDs, inv.ID)
		cand.InvoiceCount++
		cand.TotalAmountMinor += inv.AmountMinor
		if cand.Currency == "" {
			cand.Currency = inv.Currency
		}
		if bucket.Urgency() > cand.MostUrgentBucket.Urgency() {
			cand.MostUrgentBucket = bucket
			cand.DaysOverdue = DaysOverdue(inv.DueDate, today)
		}
		if inv.LastReminderAt != nil && (lastContact == nil || inv.LastReminderAt.After(*lastContact)) {
			lastContact = inv.LastReminderAt
		}
	}

	cand.PriorityScore = priorityScore(cand.DaysOverdue, cand.TotalAmountMinor, cand.InvoiceCount)

	minCount := policy.MinInvoiceCount
	if customer.ConsolidationMinCount > 0 {
		minCount = customer.ConsolidationMinCount
	}
	minIntervalDays := policy.MinContactIntervalDays
	if customer.MinContactIntervalDays > 0 {
		minIntervalDays = customer.MinContactIntervalDays
	}

	switch {
	case !customer.ConsolidationEnabled:
		cand.Reason = ReasonDisabled
	case cand.InvoiceCount < minCount:
		cand.Reason = ReasonBelowThreshold
	case lastContact != nil && DaysOverdue(*lastContact, today) < minIntervalDays:
		cand.Reason = ReasonContactedRecently
	default:
		cand.Eligible = true
	}
	return cand
}

// priorityScore weights days overdue, total amount and invoice count into a
// single ordering key. Used only to sort and escalate candidates; it carries
// no eligibility meaning.
func priorityScore(daysOverdue int, totalAmountMinor int64, invoiceCount int) float64 {
	amountMajor := float64(totalAmountMinor) / 100.0
	return 1.5*float64(daysOverdue) + 10.0*math.Log1p(amountMajor) + 5.0*float64(invoiceCount)
}
