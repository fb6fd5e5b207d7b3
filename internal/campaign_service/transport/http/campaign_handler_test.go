package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cleardue/golang_services/internal/campaign_service/domain"
	transport_http "github.com/cleardue/golang_services/internal/campaign_service/transport/http"
)

type MockCampaignExecutor struct {
	mock.Mock
}

func (m *MockCampaignExecutor) Start(ctx context.Context, campaignID uuid.UUID, recipients []*domain.Recipient) (*domain.Progress, error) {
	args := m.Called(ctx, campaignID, recipients)
	if p, ok := args.Get(0).(*domain.Progress); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCampaignExecutor) Resume(ctx context.Context, campaignID uuid.UUID) (*domain.Progress, error) {
	args := m.Called(ctx, campaignID)
	if p, ok := args.Get(0).(*domain.Progress); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCampaignExecutor) Pause(ctx context.Context, campaignID uuid.UUID) error {
	args := m.Called(ctx, campaignID)
	return args.Error(0)
}

func (m *MockCampaignExecutor) GetProgress(ctx context.Context, campaignID uuid.UUID) (*domain.Progress, error) {
	args := m.Called(ctx, campaignID)
	if p, ok := args.Get(0).(*domain.Progress); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*domain.Campaign); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCampaignRepository) StartSending(ctx context.Context, campaignID uuid.UUID, recipients []*domain.Recipient, startedAt time.Time) (bool, error) {
	args := m.Called(ctx, campaignID, recipients, startedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockCampaignRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus, reason *string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, from, to, reason, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockCampaignRepository) ListPendingRecipients(ctx context.Context, campaignID uuid.UUID) ([]*domain.Recipient, error) {
	args := m.Called(ctx, campaignID)
	if r, ok := args.Get(0).([]*domain.Recipient); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func setupHandlerTest() (*chi.Mux, *MockCampaignExecutor, *MockCampaignRepository) {
	executor := new(MockCampaignExecutor)
	repo := new(MockCampaignRepository)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := transport_http.NewCampaignHandler(executor, repo, validator.New(), logger)

	router := chi.NewRouter()
	router.Route("/campaigns", handler.RegisterRoutes)
	return router, executor, repo
}

func startBody(t *testing.T, n int) []byte {
	t.Helper()
	recipients := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		recipients = append(recipients, map[string]any{
			"email":       fmt.Sprintf("customer%d@example.com", i),
			"subject":     "Invoice overdue",
			"body":        "<p>Please pay.</p>",
			"invoice_ids": []string{uuid.NewString()},
		})
	}
	body, err := json.Marshal(map[string]any{"recipients": recipients})
	require.NoError(t, err)
	return body
}

func TestCampaignHandler_CreateCampaign(t *testing.T) {
	router, _, repo := setupHandlerTest()

	companyID := uuid.New()
	body := []byte(fmt.Sprintf(`{"company_id": %q, "name": "march overdue run"}`, companyID))

	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Campaign) bool {
		return c.CompanyID == companyID && c.Name == "march overdue run" && c.Status == domain.CampaignStatusDraft
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp transport_http.CampaignDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "draft", resp.Status)
	assert.Equal(t, companyID.String(), resp.CompanyID)
	repo.AssertExpectations(t)
}

func TestCampaignHandler_CreateCampaign_ValidationError(t *testing.T) {
	router, _, repo := setupHandlerTest()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/", bytes.NewBufferString(`{"name": ""}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	repo.AssertNotCalled(t, "Create")
}

func TestCampaignHandler_StartCampaign(t *testing.T) {
	router, executor, _ := setupHandlerTest()

	campaignID := uuid.New()
	progress := &domain.Progress{
		CampaignID:      campaignID,
		Status:          domain.CampaignStatusSending,
		Total:           2,
		PercentComplete: 0,
	}
	executor.On("Start", mock.Anything, campaignID, mock.MatchedBy(func(recipients []*domain.Recipient) bool {
		return len(recipients) == 2
	})).Return(progress, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/"+campaignID.String()+"/start", bytes.NewBuffer(startBody(t, 2)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp transport_http.ProgressDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "sending", resp.Status)
	assert.Equal(t, 2, resp.Total)
	executor.AssertExpectations(t)
}

func TestCampaignHandler_StartCampaign_DuplicateConflict(t *testing.T) {
	router, executor, _ := setupHandlerTest()

	campaignID := uuid.New()
	executor.On("Start", mock.Anything, campaignID, mock.Anything).
		Return(nil, domain.ErrCampaignAlreadyRunning).Once()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/"+campaignID.String()+"/start", bytes.NewBuffer(startBody(t, 1)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	executor.AssertExpectations(t)
}

func TestCampaignHandler_StartCampaign_InvalidTransition(t *testing.T) {
	router, executor, _ := setupHandlerTest()

	campaignID := uuid.New()
	executor.On("Start", mock.Anything, campaignID, mock.Anything).
		Return(nil, fmt.Errorf("%w: cannot start campaign in status completed", domain.ErrInvalidTransition)).Once()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/"+campaignID.String()+"/start", bytes.NewBuffer(startBody(t, 1)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	executor.AssertExpectations(t)
}

func TestCampaignHandler_StartCampaign_EmptyRecipients(t *testing.T) {
	router, executor, _ := setupHandlerTest()

	campaignID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/campaigns/"+campaignID.String()+"/start",
		bytes.NewBufferString(`{"recipients": []}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	executor.AssertNotCalled(t, "Start")
}

func TestCampaignHandler_GetCampaign_NotFound(t *testing.T) {
	router, _, repo := setupHandlerTest()

	campaignID := uuid.New()
	repo.On("GetByID", mock.Anything, campaignID).Return(nil, domain.ErrCampaignNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/campaigns/"+campaignID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	repo.AssertExpectations(t)
}

func TestCampaignHandler_GetCampaign_InvalidID(t *testing.T) {
	router, _, repo := setupHandlerTest()

	req := httptest.NewRequest(http.MethodGet, "/campaigns/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	repo.AssertNotCalled(t, "GetByID")
}

func TestCampaignHandler_PauseCampaign_NotRunning(t *testing.T) {
	router, executor, _ := setupHandlerTest()

	campaignID := uuid.New()
	executor.On("Pause", mock.Anything, campaignID).Return(domain.ErrCampaignNotRunning).Once()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/"+campaignID.String()+"/pause", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	executor.AssertExpectations(t)
}

func TestCampaignHandler_PauseThenProgress(t *testing.T) {
	router, executor, _ := setupHandlerTest()

	campaignID := uuid.New()
	reason := domain.PauseReasonRequested
	executor.On("Pause", mock.Anything, campaignID).Return(nil).Once()
	executor.On("GetProgress", mock.Anything, campaignID).Return(&domain.Progress{
		CampaignID:      campaignID,
		Status:          domain.CampaignStatusPaused,
		StatusReason:    &reason,
		Total:           7,
		Attempted:       5,
		Sent:            5,
		PercentComplete: 71.4,
	}, nil).Once()

	pauseReq := httptest.NewRequest(http.MethodPost, "/campaigns/"+campaignID.String()+"/pause", nil)
	pauseRR := httptest.NewRecorder()
	router.ServeHTTP(pauseRR, pauseReq)
	require.Equal(t, http.StatusAccepted, pauseRR.Code)

	progReq := httptest.NewRequest(http.MethodGet, "/campaigns/"+campaignID.String()+"/progress", nil)
	progRR := httptest.NewRecorder()
	router.ServeHTTP(progRR, progReq)

	require.Equal(t, http.StatusOK, progRR.Code)
	var resp transport_http.ProgressDTO
	require.NoError(t, json.Unmarshal(progRR.Body.Bytes(), &resp))
	assert.Equal(t, "paused", resp.Status)
	require.NotNil(t, resp.StatusReason)
	assert.Equal(t, domain.PauseReasonRequested, *resp.StatusReason)
	assert.Equal(t, 5, resp.Sent)
	executor.AssertExpectations(t)
}

func TestCampaignHandler_ResumeCampaign(t *testing.T) {
	router, executor, _ := setupHandlerTest()

	campaignID := uuid.New()
	executor.On("Resume", mock.Anything, campaignID).Return(&domain.Progress{
		CampaignID: campaignID,
		Status:     domain.CampaignStatusSending,
		Total:      7,
		Attempted:  5,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/"+campaignID.String()+"/resume", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	executor.AssertExpectations(t)
}
