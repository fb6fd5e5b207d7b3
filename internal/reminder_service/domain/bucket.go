package domain

import (
	"time"

	"github.com/cleardue/golang_services/internal/core_domain"
)

// BucketID names an aging category for an invoice, based on days past due.
type BucketID string

const (
	// BucketNotApplicable is returned for invoices excluded from aging
	// computation (paid or cancelled).
	BucketNotApplicable BucketID = "not_applicable"
	BucketNotDue        BucketID = "not_due"
	BucketOverdue1To3   BucketID = "overdue_1_3"
	BucketOverdue4To7   BucketID = "overdue_4_7"
	BucketOverdue8To14  BucketID = "overdue_8_14"
	BucketOverdue15To30 BucketID = "overdue_15_30"
	BucketOverdue30Plus BucketID = "overdue_30_plus"
)

// OverdueBuckets lists the aging buckets in ascending urgency, excluding
// not_due. Used for bucket-config provisioning and reporting.
var OverdueBuckets = []BucketID{
	BucketOverdue1To3,
	BucketOverdue4To7,
	BucketOverdue8To14,
	BucketOverdue15To30,
	BucketOverdue30Plus,
}

// Urgency returns the sort weight of a bucket; higher is more urgent.
// not_applicable sorts below everything.
func (b BucketID) Urgency() int {
	switch b {
	case BucketNotDue:
		return 0
	case BucketOverdue1To3:
		return 1
	case BucketOverdue4To7:
		return 2
	case BucketOverdue8To14:
		return 3
	case BucketOverdue15To30:
		return 4
	case BucketOverdue30Plus:
		return 5
	default:
		return -1
	}
}

// DaysOverdue returns the calendar-day difference between today and dueDate.
// Both values are reduced to date-only form first, so the result is
// independent of the wall-clock time and time zone offsets of the inputs.
// Negative results mean the due date is still in the future.
func DaysOverdue(dueDate, today time.Time) int {
	due := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC)
	now := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(now.Sub(due).Hours() / 24)
}

// Classify maps an invoice's due date and status to its aging bucket as of
// today. Paid and cancelled invoices never receive a bucket. Boundary days
// belong to the lower bucket: exactly 3 days overdue is overdue_1_3, exactly
// 4 is overdue_4_7. Pure and deterministic.
func Classify(dueDate time.Time, status core_domain.InvoiceStatus, today time.Time) BucketID {
	if status == core_domain.InvoiceStatusPaid || status == core_domain.InvoiceStatusCancelled {
		return BucketNotApplicable
	}

	days := DaysOverdue(dueDate, today)
	switch {
	case days <= 0:
		return BucketNotDue
	case days <= 3:
		return BucketOverdue1To3
	case days <= 7:
		return BucketOverdue4To7
	case days <= 14:
		return BucketOverdue8To14
	case days <= 30:
		return BucketOverdue15To30
	default:
		return BucketOverdue30Plus
	}
}
