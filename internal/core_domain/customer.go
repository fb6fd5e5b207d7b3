package core_domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer represents a billable contact owned by a company. A customer owns
// zero or more invoices; invoices may also exist without a customer link, in
// which case consolidation is skipped for them.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`

	// Consolidation preference: when enabled, multiple overdue invoices are
	// grouped into a single reminder, subject to the thresholds below.
	ConsolidationEnabled   bool `json:"consolidation_enabled"`
	ConsolidationMinCount  int  `json:"consolidation_min_count"`
	MinContactIntervalDays int  `json:"min_contact_interval_days"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
