package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/reminder_service/app"
)

// CompanyEvaluator is the application interface the handler depends on.
type CompanyEvaluator interface {
	EvaluateCompany(ctx context.Context, companyID uuid.UUID, now time.Time) (*app.EvaluationSummary, error)
}

// EvaluationHandler exposes the scheduling trigger. An external cron posts
// here; the handler runs one evaluation pass and returns the summary.
type EvaluationHandler struct {
	appService CompanyEvaluator
	logger     *slog.Logger
}

func NewEvaluationHandler(appService CompanyEvaluator, logger *slog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		appService: appService,
		logger:     logger.With("component", "evaluation_handler"),
	}
}

// RegisterRoutes registers the trigger route on a chi router.
func (h *EvaluationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/companies/{companyID}/evaluate", h.EvaluateCompany)
}

// EvaluateCompany handles POST /internal/companies/{companyID}/evaluate.
func (h *EvaluationHandler) EvaluateCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := chi.URLParam(r, "companyID")
	companyID, err := uuid.Parse(raw)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid company id in evaluation trigger", "raw", raw)
		http.Error(w, "Invalid company ID", http.StatusBadRequest)
		return
	}

	summary, err := h.appService.EvaluateCompany(ctx, companyID, time.Now().UTC())
	if err != nil {
		h.logger.ErrorContext(ctx, "company evaluation failed", "company_id", companyID, "error", err)
		http.Error(w, "Evaluation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode evaluation summary", "error", err)
	}
}
