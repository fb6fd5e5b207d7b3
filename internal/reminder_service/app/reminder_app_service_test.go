package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	campaigndomain "github.com/cleardue/golang_services/internal/campaign_service/domain"
	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/reminder_service/domain"
)

type MockInvoiceRepository struct{ mock.Mock }

func (m *MockInvoiceRepository) ListOpenByCompany(ctx context.Context, companyID uuid.UUID) ([]*core_domain.Invoice, error) {
	args := m.Called(ctx, companyID)
	if v, ok := args.Get(0).([]*core_domain.Invoice); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvoiceRepository) MarkOverdue(ctx context.Context, companyID uuid.UUID, today time.Time) (int64, error) {
	args := m.Called(ctx, companyID, today)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) TouchLastReminder(ctx context.Context, invoiceIDs []uuid.UUID, at time.Time) error {
	args := m.Called(ctx, invoiceIDs, at)
	return args.Error(0)
}

type MockCustomerRepository struct{ mock.Mock }

func (m *MockCustomerRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*core_domain.Customer, error) {
	args := m.Called(ctx, companyID)
	if v, ok := args.Get(0).([]*core_domain.Customer); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*core_domain.Customer, error) {
	args := m.Called(ctx, id)
	if v, ok := args.Get(0).(*core_domain.Customer); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockBucketConfigRepository struct{ mock.Mock }

func (m *MockBucketConfigRepository) EnsureDefaults(ctx context.Context, companyID uuid.UUID, now time.Time) error {
	args := m.Called(ctx, companyID, now)
	return args.Error(0)
}

func (m *MockBucketConfigRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.BucketConfig, error) {
	args := m.Called(ctx, companyID)
	if v, ok := args.Get(0).([]*domain.BucketConfig); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCampaignRepo struct{ mock.Mock }

func (m *MockCampaignRepo) Create(ctx context.Context, campaign *campaigndomain.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

func (m *MockCampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*campaigndomain.Campaign, error) {
	args := m.Called(ctx, id)
	if v, ok := args.Get(0).(*campaigndomain.Campaign); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCampaignRepo) StartSending(ctx context.Context, campaignID uuid.UUID, recipients []*campaigndomain.Recipient, startedAt time.Time) (bool, error) {
	args := m.Called(ctx, campaignID, recipients, startedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockCampaignRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to campaigndomain.CampaignStatus, reason *string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, from, to, reason, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockCampaignRepo) ListPendingRecipients(ctx context.Context, campaignID uuid.UUID) ([]*campaigndomain.Recipient, error) {
	args := m.Called(ctx, campaignID)
	if v, ok := args.Get(0).([]*campaigndomain.Recipient); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLauncher struct{ mock.Mock }

func (m *MockLauncher) Start(ctx context.Context, campaignID uuid.UUID, recipients []*campaigndomain.Recipient) (*campaigndomain.Progress, error) {
	args := m.Called(ctx, campaignID, recipients)
	if v, ok := args.Get(0).(*campaigndomain.Progress); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

type evalMocks struct {
	invoices  *MockInvoiceRepository
	customers *MockCustomerRepository
	configs   *MockBucketConfigRepository
	campaigns *MockCampaignRepo
	launcher  *MockLauncher
}

func setupEvalTest(t *testing.T) (*ReminderAppService, evalMocks) {
	t.Helper()
	m := evalMocks{
		invoices:  new(MockInvoiceRepository),
		customers: new(MockCustomerRepository),
		configs:   new(MockBucketConfigRepository),
		campaigns: new(MockCampaignRepo),
		launcher:  new(MockLauncher),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := domain.ConsolidationPolicy{MinInvoiceCount: 2, MinContactIntervalDays: 7}
	svc := NewReminderAppService(m.invoices, m.customers, m.configs, m.campaigns, m.launcher, policy, logger)
	return svc, m
}

// Tuesday 09:xx UTC, inside the default Mon-Fri hour-9 window.
var evalNow = time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)

func overdueInvoice(companyID uuid.UUID, customerID *uuid.UUID, number string, daysOverdue int, amountMinor int64) *core_domain.Invoice {
	return &core_domain.Invoice{
		ID:          uuid.New(),
		CompanyID:   companyID,
		CustomerID:  customerID,
		Number:      number,
		AmountMinor: amountMinor,
		Currency:    "EUR",
		DueDate:     evalNow.AddDate(0, 0, -daysOverdue),
		Status:      core_domain.InvoiceStatusOverdue,
	}
}

func autoEnabledConfigs(companyID uuid.UUID) []*domain.BucketConfig {
	configs := domain.DefaultBucketConfigs(companyID, evalNow)
	for _, cfg := range configs {
		cfg.AutoSendEnabled = true
	}
	return configs
}

func TestEvaluateCompany_ConsolidatesAndAutoStarts(t *testing.T) {
	svc, m := setupEvalTest(t)
	companyID := uuid.New()
	customerID := uuid.New()

	customer := &core_domain.Customer{
		ID: customerID, CompanyID: companyID,
		Name: "Acme GmbH", Email: "billing@acme.example",
		ConsolidationEnabled: true,
	}
	invoices := []*core_domain.Invoice{
		overdueInvoice(companyID, &customerID, "INV-1", 5, 10000),
		overdueInvoice(companyID, &customerID, "INV-2", 12, 25000),
		overdueInvoice(companyID, &customerID, "INV-3", 2, 5000),
	}

	m.invoices.On("MarkOverdue", mock.Anything, companyID, evalNow).Return(int64(1), nil).Once()
	m.configs.On("EnsureDefaults", mock.Anything, companyID, evalNow).Return(nil).Once()
	m.configs.On("ListByCompany", mock.Anything, companyID).Return(autoEnabledConfigs(companyID), nil).Once()
	m.invoices.On("ListOpenByCompany", mock.Anything, companyID).Return(invoices, nil).Once()
	m.customers.On("ListByCompany", mock.Anything, companyID).Return([]*core_domain.Customer{customer}, nil).Once()

	m.campaigns.On("Create", mock.Anything, mock.MatchedBy(func(c *campaigndomain.Campaign) bool {
		return c.CompanyID == companyID && c.Status == campaigndomain.CampaignStatusDraft
	})).Return(nil).Once()
	m.launcher.On("Start", mock.Anything, mock.Anything, mock.MatchedBy(func(recipients []*campaigndomain.Recipient) bool {
		return len(recipients) == 1 &&
			recipients[0].Email == "billing@acme.example" &&
			len(recipients[0].InvoiceIDs) == 3
	})).Return(&campaigndomain.Progress{Status: campaigndomain.CampaignStatusSending, Total: 1}, nil).Once()
	m.invoices.On("TouchLastReminder", mock.Anything, mock.MatchedBy(func(ids []uuid.UUID) bool {
		return len(ids) == 3
	}), evalNow).Return(nil).Once()

	summary, err := svc.EvaluateCompany(context.Background(), companyID, evalNow)
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.InvoicesMarkedOverdue)
	assert.Equal(t, 3, summary.OpenInvoices)
	assert.Equal(t, 1, summary.CandidatesEvaluated)
	assert.Equal(t, 1, summary.EligibleCandidates)
	assert.Equal(t, 1, summary.AutoRecipients)
	assert.Equal(t, 0, summary.ManualRecipients)
	assert.Equal(t, 1, summary.CampaignsStarted)
	require.Len(t, summary.Candidates, 1)
	assert.Equal(t, domain.BucketOverdue8To14, summary.Candidates[0].MostUrgentBucket)
	m.invoices.AssertExpectations(t)
	m.campaigns.AssertExpectations(t)
	m.launcher.AssertExpectations(t)
}

func TestEvaluateCompany_ManualOnlyDefaultsStartNothing(t *testing.T) {
	svc, m := setupEvalTest(t)
	companyID := uuid.New()
	customerID := uuid.New()

	customer := &core_domain.Customer{
		ID: customerID, CompanyID: companyID,
		Name: "Acme GmbH", Email: "billing@acme.example",
		ConsolidationEnabled: true,
	}
	invoices := []*core_domain.Invoice{
		overdueInvoice(companyID, &customerID, "INV-1", 5, 10000),
		overdueInvoice(companyID, &customerID, "INV-2", 12, 25000),
	}

	m.invoices.On("MarkOverdue", mock.Anything, companyID, evalNow).Return(int64(0), nil).Once()
	m.configs.On("EnsureDefaults", mock.Anything, companyID, evalNow).Return(nil).Once()
	// Provisioned defaults: auto-send off everywhere.
	m.configs.On("ListByCompany", mock.Anything, companyID).
		Return(domain.DefaultBucketConfigs(companyID, evalNow), nil).Once()
	m.invoices.On("ListOpenByCompany", mock.Anything, companyID).Return(invoices, nil).Once()
	m.customers.On("ListByCompany", mock.Anything, companyID).Return([]*core_domain.Customer{customer}, nil).Once()

	summary, err := svc.EvaluateCompany(context.Background(), companyID, evalNow)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.EligibleCandidates)
	assert.Equal(t, 0, summary.AutoRecipients)
	assert.Equal(t, 1, summary.ManualRecipients)
	assert.Equal(t, 0, summary.CampaignsStarted)
	m.campaigns.AssertNotCalled(t, "Create")
	m.launcher.AssertNotCalled(t, "Start")
}

func TestEvaluateCompany_RecentContactSkipsCustomer(t *testing.T) {
	svc, m := setupEvalTest(t)
	companyID := uuid.New()
	customerID := uuid.New()

	customer := &core_domain.Customer{
		ID: customerID, CompanyID: companyID,
		Name: "Acme GmbH", Email: "billing@acme.example",
		ConsolidationEnabled: true,
	}
	recentContact := evalNow.AddDate(0, 0, -2)
	inv1 := overdueInvoice(companyID, &customerID, "INV-1", 5, 10000)
	inv1.LastReminderAt = &recentContact
	inv2 := overdueInvoice(companyID, &customerID, "INV-2", 12, 25000)

	m.invoices.On("MarkOverdue", mock.Anything, companyID, evalNow).Return(int64(0), nil).Once()
	m.configs.On("EnsureDefaults", mock.Anything, companyID, evalNow).Return(nil).Once()
	m.configs.On("ListByCompany", mock.Anything, companyID).Return(autoEnabledConfigs(companyID), nil).Once()
	m.invoices.On("ListOpenByCompany", mock.Anything, companyID).
		Return([]*core_domain.Invoice{inv1, inv2}, nil).Once()
	m.customers.On("ListByCompany", mock.Anything, companyID).Return([]*core_domain.Customer{customer}, nil).Once()

	summary, err := svc.EvaluateCompany(context.Background(), companyID, evalNow)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CandidatesEvaluated)
	assert.Equal(t, 0, summary.EligibleCandidates)
	assert.Equal(t, 0, summary.AutoRecipients)
	assert.Equal(t, 0, summary.ManualRecipients, "recently contacted customers get no reminders at all")
	require.Len(t, summary.Candidates, 1)
	assert.Equal(t, domain.ReasonContactedRecently, summary.Candidates[0].Reason)
	m.launcher.AssertNotCalled(t, "Start")
}

func TestEvaluateCompany_DisabledConsolidationFallsBackToIndividuals(t *testing.T) {
	svc, m := setupEvalTest(t)
	companyID := uuid.New()
	customerID := uuid.New()

	customer := &core_domain.Customer{
		ID: customerID, CompanyID: companyID,
		Name: "Acme GmbH", Email: "billing@acme.example",
		ConsolidationEnabled: false,
	}
	invoices := []*core_domain.Invoice{
		overdueInvoice(companyID, &customerID, "INV-1", 5, 10000),
		overdueInvoice(companyID, &customerID, "INV-2", 12, 25000),
	}

	m.invoices.On("MarkOverdue", mock.Anything, companyID, evalNow).Return(int64(0), nil).Once()
	m.configs.On("EnsureDefaults", mock.Anything, companyID, evalNow).Return(nil).Once()
	m.configs.On("ListByCompany", mock.Anything, companyID).Return(autoEnabledConfigs(companyID), nil).Once()
	m.invoices.On("ListOpenByCompany", mock.Anything, companyID).Return(invoices, nil).Once()
	m.customers.On("ListByCompany", mock.Anything, companyID).Return([]*core_domain.Customer{customer}, nil).Once()

	m.campaigns.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	m.launcher.On("Start", mock.Anything, mock.Anything, mock.MatchedBy(func(recipients []*campaigndomain.Recipient) bool {
		// One reminder per invoice, each covering exactly one.
		return len(recipients) == 2 &&
			len(recipients[0].InvoiceIDs) == 1 && len(recipients[1].InvoiceIDs) == 1
	})).Return(&campaigndomain.Progress{Status: campaigndomain.CampaignStatusSending, Total: 2}, nil).Once()
	m.invoices.On("TouchLastReminder", mock.Anything, mock.Anything, evalNow).Return(nil).Once()

	summary, err := svc.EvaluateCompany(context.Background(), companyID, evalNow)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.EligibleCandidates)
	assert.Equal(t, 2, summary.AutoRecipients)
	require.Len(t, summary.Candidates, 1)
	assert.Equal(t, domain.ReasonDisabled, summary.Candidates[0].Reason)
	m.launcher.AssertExpectations(t)
}

func TestEvaluateCompany_CustomerlessInvoicesSkipped(t *testing.T) {
	svc, m := setupEvalTest(t)
	companyID := uuid.New()

	invoices := []*core_domain.Invoice{
		overdueInvoice(companyID, nil, "INV-1", 5, 10000),
	}

	m.invoices.On("MarkOverdue", mock.Anything, companyID, evalNow).Return(int64(0), nil).Once()
	m.configs.On("EnsureDefaults", mock.Anything, companyID, evalNow).Return(nil).Once()
	m.configs.On("ListByCompany", mock.Anything, companyID).Return(autoEnabledConfigs(companyID), nil).Once()
	m.invoices.On("ListOpenByCompany", mock.Anything, companyID).Return(invoices, nil).Once()
	m.customers.On("ListByCompany", mock.Anything, companyID).Return([]*core_domain.Customer{}, nil).Once()

	summary, err := svc.EvaluateCompany(context.Background(), companyID, evalNow)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.OpenInvoices)
	assert.Equal(t, 0, summary.CandidatesEvaluated)
	assert.Equal(t, 0, summary.CampaignsStarted)
	m.launcher.AssertNotCalled(t, "Start")
}
