package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	campaigndomain "github.com/cleardue/golang_services/internal/campaign_service/domain"
	campaignrepo "github.com/cleardue/golang_services/internal/campaign_service/repository"
	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/reminder_service/domain"
	"github.com/cleardue/golang_services/internal/reminder_service/repository"
)

// CampaignLauncher is the campaign engine interface the evaluation pass
// depends on. Satisfied by the campaign runner.
type CampaignLauncher interface {
	Start(ctx context.Context, campaignID uuid.UUID, recipients []*campaigndomain.Recipient) (*campaigndomain.Progress, error)
}

// EvaluationSummary is the result of one company evaluation pass, returned
// to the scheduling trigger.
type EvaluationSummary struct {
	CompanyID             uuid.UUID           `json:"company_id"`
	EvaluatedAt           time.Time           `json:"evaluated_at"`
	InvoicesMarkedOverdue int64               `json:"invoices_marked_overdue"`
	OpenInvoices          int                 `json:"open_invoices"`
	CandidatesEvaluated   int                 `json:"candidates_evaluated"`
	EligibleCandidates    int                 `json:"eligible_candidates"`
	Candidates            []*domain.Candidate `json:"candidates"`
	AutoRecipients        int                 `json:"auto_recipients"`
	ManualRecipients      int                 `json:"manual_recipients"`
	CampaignsStarted      int                 `json:"campaigns_started"`
	CampaignIDs           []uuid.UUID         `json:"campaign_ids,omitempty"`
}

// plannedRecipient pairs a rendered recipient with the bucket that decides
// its auto-send window and the invoices it covers.
type plannedRecipient struct {
	recipient  *campaigndomain.Recipient
	bucket     domain.BucketID
	invoiceIDs []uuid.UUID
}

// ReminderAppService runs the company evaluation pass: status sync,
// consolidation, rendering, and auto-send campaign kickoff for buckets whose
// config is inside its send window. Evaluation itself mutates only invoice
// statuses; everything else it computes is advisory until a campaign starts.
type ReminderAppService struct {
	invoiceRepo      repository.InvoiceRepository
	customerRepo     repository.CustomerRepository
	bucketConfigRepo repository.BucketConfigRepository
	campaignRepo     campaignrepo.CampaignRepository
	launcher         CampaignLauncher
	policy           domain.ConsolidationPolicy
	logger           *slog.Logger
}

func NewReminderAppService(
	invoiceRepo repository.InvoiceRepository,
	customerRepo repository.CustomerRepository,
	bucketConfigRepo repository.BucketConfigRepository,
	campaignRepo campaignrepo.CampaignRepository,
	launcher CampaignLauncher,
	policy domain.ConsolidationPolicy,
	logger *slog.Logger,
) *ReminderAppService {
	return &ReminderAppService{
		invoiceRepo:      invoiceRepo,
		customerRepo:     customerRepo,
		bucketConfigRepo: bucketConfigRepo,
		campaignRepo:     campaignRepo,
		launcher:         launcher,
		policy:           policy,
		logger:           logger.With("service", "reminder_app"),
	}
}

// EvaluateCompany performs one evaluation pass for the company at the given
// time. Recomputable: running it twice in a row starts no duplicate sends,
// because started campaigns stamp last_reminder_at on their invoices.
func (s *ReminderAppService) EvaluateCompany(ctx context.Context, companyID uuid.UUID, now time.Time) (*EvaluationSummary, error) {
	now = now.UTC()
	logger := s.logger.With("company_id", companyID)
	evaluationsTotal.Inc()

	summary := &EvaluationSummary{CompanyID: companyID, EvaluatedAt: now}

	flipped, err := s.invoiceRepo.MarkOverdue(ctx, companyID, now)
	if err != nil {
		return nil, fmt.Errorf("status sync for company %s: %w", companyID, err)
	}
	summary.InvoicesMarkedOverdue = flipped
	invoicesMarkedOverdueTotal.Add(float64(flipped))

	if err := s.bucketConfigRepo.EnsureDefaults(ctx, companyID, now); err != nil {
		return nil, err
	}
	configs, err := s.bucketConfigRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	configByBucket := make(map[domain.BucketID]*domain.BucketConfig, len(configs))
	for _, cfg := range configs {
		configByBucket[cfg.Bucket] = cfg
	}

	invoices, err := s.invoiceRepo.ListOpenByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	summary.OpenInvoices = len(invoices)

	customers, err := s.customerRepo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	customerByID := make(map[uuid.UUID]*core_domain.Customer, len(customers))
	for _, c := range customers {
		customerByID[c.ID] = c
	}

	invoicesByCustomer := make(map[uuid.UUID][]*core_domain.Invoice)
	var unaddressable int
	for _, inv := range invoices {
		if inv.CustomerID == nil {
			unaddressable++
			continue
		}
		if _, known := customerByID[*inv.CustomerID]; !known {
			unaddressable++
			continue
		}
		invoicesByCustomer[*inv.CustomerID] = append(invoicesByCustomer[*inv.CustomerID], inv)
	}
	if unaddressable > 0 {
		logger.WarnContext(ctx, "open invoices without a reachable customer skipped",
			"count", unaddressable)
	}

	var planned []plannedRecipient
	for customerID, customerInvoices := range invoicesByCustomer {
		customer := customerByID[customerID]
		candidate := domain.EvaluateConsolidation(customer, customerInvoices, s.policy, now)
		if candidate.InvoiceCount == 0 {
			continue
		}
		summary.CandidatesEvaluated++
		summary.Candidates = append(summary.Candidates, candidate)

		switch {
		case candidate.Eligible:
			summary.EligibleCandidates++
			candidatesEvaluatedTotal.WithLabelValues("eligible").Inc()
			planned = append(planned, s.planConsolidated(candidate, customerInvoices, now))
		case candidate.Reason == domain.ReasonContactedRecently:
			// Recently contacted customers are left alone entirely.
			candidatesEvaluatedTotal.WithLabelValues(string(candidate.Reason)).Inc()
		default:
			candidatesEvaluatedTotal.WithLabelValues(string(candidate.Reason)).Inc()
			planned = append(planned, s.planIndividuals(customer, customerInvoices, now)...)
		}
	}

	var autoRecipients []*campaigndomain.Recipient
	var coveredInvoiceIDs []uuid.UUID
	for _, plan := range planned {
		cfg, ok := configByBucket[plan.bucket]
		if ok && cfg.AutoSendEnabled && cfg.InSendWindow(now) {
			autoRecipients = append(autoRecipients, plan.recipient)
			coveredInvoiceIDs = append(coveredInvoiceIDs, plan.invoiceIDs...)
		} else {
			summary.ManualRecipients++
		}
	}
	summary.AutoRecipients = len(autoRecipients)

	if len(autoRecipients) > 0 {
		campaignID, err := s.startAutoCampaign(ctx, companyID, autoRecipients, coveredInvoiceIDs, now)
		if err != nil {
			return nil, err
		}
		summary.CampaignsStarted = 1
		summary.CampaignIDs = append(summary.CampaignIDs, campaignID)
	}

	logger.InfoContext(ctx, "company evaluation finished",
		"open_invoices", summary.OpenInvoices,
		"marked_overdue", summary.InvoicesMarkedOverdue,
		"candidates", summary.CandidatesEvaluated,
		"eligible", summary.EligibleCandidates,
		"auto_recipients", summary.AutoRecipients,
		"manual_recipients", summary.ManualRecipients,
		"campaigns_started", summary.CampaignsStarted)
	return summary, nil
}

func (s *ReminderAppService) planConsolidated(candidate *domain.Candidate, customerInvoices []*core_domain.Invoice, now time.Time) plannedRecipient {
	covered := make(map[uuid.UUID]bool, len(candidate.InvoiceIDs))
	for _, id := range candidate.InvoiceIDs {
		covered[id] = true
	}
	var coveredInvoices []*core_domain.Invoice
	for _, inv := range customerInvoices {
		if covered[inv.ID] {
			coveredInvoices = append(coveredInvoices, inv)
		}
	}

	subject, body := renderConsolidatedEmail(candidate, coveredInvoices)
	invoiceIDStrings := make([]string, 0, len(candidate.InvoiceIDs))
	for _, id := range candidate.InvoiceIDs {
		invoiceIDStrings = append(invoiceIDStrings, id.String())
	}
	customerID := candidate.CustomerID
	return plannedRecipient{
		recipient: &campaigndomain.Recipient{
			CustomerID: &customerID,
			Email:      candidate.RecipientEmail,
			Subject:    subject,
			Body:       body,
			InvoiceIDs: invoiceIDStrings,
		},
		bucket:     candidate.MostUrgentBucket,
		invoiceIDs: candidate.InvoiceIDs,
	}
}

// planIndividuals is the fallback for customers whose consolidation is
// disabled or below threshold: one reminder per bucketable invoice, still
// honoring the contact interval per invoice.
func (s *ReminderAppService) planIndividuals(customer *core_domain.Customer, customerInvoices []*core_domain.Invoice, now time.Time) []plannedRecipient {
	minIntervalDays := s.policy.MinContactIntervalDays
	if customer.MinContactIntervalDays > 0 {
		minIntervalDays = customer.MinContactIntervalDays
	}

	var planned []plannedRecipient
	for _, inv := range customerInvoices {
		bucket := domain.Classify(inv.DueDate, inv.Status, now)
		if bucket == domain.BucketNotApplicable || bucket == domain.BucketNotDue {
			continue
		}
		if inv.LastReminderAt != nil && domain.DaysOverdue(*inv.LastReminderAt, now) < minIntervalDays {
			continue
		}
		subject, body := renderIndividualEmail(customer.Name, inv, now)
		customerID := customer.ID
		planned = append(planned, plannedRecipient{
			recipient: &campaigndomain.Recipient{
				CustomerID: &customerID,
				Email:      customer.Email,
				Subject:    subject,
				Body:       body,
				InvoiceIDs: []string{inv.ID.String()},
			},
			bucket:     bucket,
			invoiceIDs: []uuid.UUID{inv.ID},
		})
	}
	return planned
}

func (s *ReminderAppService) startAutoCampaign(ctx context.Context, companyID uuid.UUID, recipients []*campaigndomain.Recipient, coveredInvoiceIDs []uuid.UUID, now time.Time) (uuid.UUID, error) {
	campaign := &campaigndomain.Campaign{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      fmt.Sprintf("Automatic reminders %s", now.Format("2006-01-02 15:04")),
		Status:    campaigndomain.CampaignStatusDraft,
	}
	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		return uuid.Nil, fmt.Errorf("creating auto campaign for company %s: %w", companyID, err)
	}

	if _, err := s.launcher.Start(ctx, campaign.ID, recipients); err != nil {
		return uuid.Nil, fmt.Errorf("starting auto campaign %s: %w", campaign.ID, err)
	}
	autoCampaignsStartedTotal.Inc()

	if err := s.invoiceRepo.TouchLastReminder(ctx, coveredInvoiceIDs, now); err != nil {
		// The campaign is already running; the stamp failing only risks an
		// earlier-than-intended followup, so log and keep going.
		s.logger.ErrorContext(ctx, "failed to stamp last reminder on covered invoices",
			"campaign_id", campaign.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "auto campaign started",
		"campaign_id", campaign.ID, "company_id", companyID, "recipients", len(recipients))
	return campaign.ID, nil
}
