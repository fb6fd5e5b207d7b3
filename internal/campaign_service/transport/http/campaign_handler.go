package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/campaign_service/domain"
	"github.com/cleardue/golang_services/internal/campaign_service/repository"
)

// CampaignExecutor is the execution-engine interface the handler depends on.
// Satisfied by app.CampaignRunner.
type CampaignExecutor interface {
	Start(ctx context.Context, campaignID uuid.UUID, recipients []*domain.Recipient) (*domain.Progress, error)
	Resume(ctx context.Context, campaignID uuid.UUID) (*domain.Progress, error)
	Pause(ctx context.Context, campaignID uuid.UUID) error
	GetProgress(ctx context.Context, campaignID uuid.UUID) (*domain.Progress, error)
}

type CampaignHandler struct {
	executor     CampaignExecutor
	campaignRepo repository.CampaignRepository
	validate     *validator.Validate
	logger       *slog.Logger
}

func NewCampaignHandler(executor CampaignExecutor, campaignRepo repository.CampaignRepository, validate *validator.Validate, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		executor:     executor,
		campaignRepo: campaignRepo,
		validate:     validate,
		logger:       logger.With("component", "campaign_handler"),
	}
}

// RegisterRoutes registers campaign routes on a chi router.
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.CreateCampaign)
	r.Get("/{campaignID}", h.GetCampaign)
	r.Get("/{campaignID}/progress", h.GetProgress)
	r.Post("/{campaignID}/start", h.StartCampaign)
	r.Post("/{campaignID}/pause", h.PauseCampaign)
	r.Post("/{campaignID}/resume", h.ResumeCampaign)
}

// mapDomainError translates campaign domain errors to HTTP status codes.
func mapDomainError(w http.ResponseWriter, logger *slog.Logger, err error, operation string, campaignID uuid.UUID) {
	logEntry := logger.With("operation", operation, "campaign_id", campaignID, "error", err)
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound):
		logEntry.Warn("campaign not found")
		http.Error(w, "Campaign not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrCampaignAlreadyRunning):
		logEntry.Warn("campaign already running")
		http.Error(w, "Campaign is already running", http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrCampaignNotRunning):
		logEntry.Warn("invalid campaign state for operation")
		http.Error(w, fmt.Sprintf("Invalid campaign state: %s", err.Error()), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrNoRecipients):
		logEntry.Warn("campaign has no recipients")
		http.Error(w, "Campaign has no recipients", http.StatusBadRequest)
	default:
		logEntry.Error("campaign operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *CampaignHandler) campaignIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "campaignID")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid campaign id in path", "raw", raw)
		http.Error(w, "Invalid campaign ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *CampaignHandler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reqDTO CreateCampaignRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "failed to decode create campaign request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "create campaign validation failed", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return
	}

	companyID, err := uuid.Parse(reqDTO.CompanyID)
	if err != nil {
		http.Error(w, "Invalid company ID", http.StatusBadRequest)
		return
	}

	campaign := &domain.Campaign{
		ID:        uuid.New(),
		CompanyID: companyID,
		Name:      reqDTO.Name,
		Status:    domain.CampaignStatusDraft,
	}
	if err := h.campaignRepo.Create(ctx, campaign); err != nil {
		h.logger.ErrorContext(ctx, "failed to create campaign", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "campaign created", "campaign_id", campaign.ID, "company_id", companyID)
	h.writeJSON(ctx, w, http.StatusCreated, campaignToDTO(campaign))
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, ok := h.campaignIDFromURL(w, r)
	if !ok {
		return
	}

	campaign, err := h.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		mapDomainError(w, h.logger, err, "GetCampaign", campaignID)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, campaignToDTO(campaign))
}

func (h *CampaignHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, ok := h.campaignIDFromURL(w, r)
	if !ok {
		return
	}

	progress, err := h.executor.GetProgress(ctx, campaignID)
	if err != nil {
		mapDomainError(w, h.logger, err, "GetProgress", campaignID)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, progressToDTO(progress))
}

func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, ok := h.campaignIDFromURL(w, r)
	if !ok {
		return
	}

	var reqDTO StartCampaignRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "failed to decode start campaign request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "start campaign validation failed", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return
	}

	recipients := make([]*domain.Recipient, 0, len(reqDTO.Recipients))
	for _, dto := range reqDTO.Recipients {
		rec := &domain.Recipient{
			Email:      dto.Email,
			Subject:    dto.Subject,
			Body:       dto.Body,
			InvoiceIDs: dto.InvoiceIDs,
		}
		if dto.CustomerID != nil {
			customerID, err := uuid.Parse(*dto.CustomerID)
			if err != nil {
				http.Error(w, "Invalid customer ID", http.StatusBadRequest)
				return
			}
			rec.CustomerID = &customerID
		}
		recipients = append(recipients, rec)
	}

	progress, err := h.executor.Start(ctx, campaignID, recipients)
	if err != nil {
		mapDomainError(w, h.logger, err, "StartCampaign", campaignID)
		return
	}

	h.logger.InfoContext(ctx, "campaign started", "campaign_id", campaignID, "recipients", len(recipients))
	h.writeJSON(ctx, w, http.StatusAccepted, progressToDTO(progress))
}

func (h *CampaignHandler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, ok := h.campaignIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.executor.Pause(ctx, campaignID); err != nil {
		mapDomainError(w, h.logger, err, "PauseCampaign", campaignID)
		return
	}

	h.logger.InfoContext(ctx, "campaign pause requested", "campaign_id", campaignID)
	w.WriteHeader(http.StatusAccepted)
}

func (h *CampaignHandler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, ok := h.campaignIDFromURL(w, r)
	if !ok {
		return
	}

	progress, err := h.executor.Resume(ctx, campaignID)
	if err != nil {
		mapDomainError(w, h.logger, err, "ResumeCampaign", campaignID)
		return
	}

	h.logger.InfoContext(ctx, "campaign resumed", "campaign_id", campaignID)
	h.writeJSON(ctx, w, http.StatusAccepted, progressToDTO(progress))
}
