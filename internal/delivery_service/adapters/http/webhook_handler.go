package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/cleardue/golang_services/internal/delivery_service/domain"
)

const MaxRequestBodySize = 1 << 20 // 1 MB

// DeliveryEventApplier is the application interface the handler depends on.
type DeliveryEventApplier interface {
	ApplyEvent(ctx context.Context, providerMessageID string, eventType domain.EventType, occurredAt time.Time, meta domain.EventMeta) error
}

// deliveryEventPayload is the provider-agnostic webhook body.
type deliveryEventPayload struct {
	ProviderMessageID string    `json:"provider_message_id" validate:"required"`
	EventType         string    `json:"event_type" validate:"required"`
	OccurredAt        time.Time `json:"occurred_at"`
	UserAgent         string    `json:"user_agent,omitempty"`
	Location          string    `json:"location,omitempty"`
}

// WebhookHandler receives delivery event webhooks from the mail provider.
// Providers redeliver until they see 200, so every semantically ignorable
// event is acknowledged; only unparseable payloads get 400.
type WebhookHandler struct {
	appService DeliveryEventApplier
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewWebhookHandler(appService DeliveryEventApplier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		appService: appService,
		validate:   validator.New(),
		logger:     logger.With("component", "delivery_webhook_handler"),
	}
}

// HandleDeliveryEvent handles POST /webhooks/email/events.
func (h *WebhookHandler) HandleDeliveryEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read webhook request body", "error", err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
		}
		return
	}

	var payload deliveryEventPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		logger.WarnContext(ctx, "unparseable webhook payload", "error", err, "payload_size", len(rawPayload))
		http.Error(w, "Unparseable payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		logger.WarnContext(ctx, "webhook payload missing required fields", "error", err)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	occurredAt := payload.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	err = h.appService.ApplyEvent(ctx, payload.ProviderMessageID, domain.EventType(payload.EventType), occurredAt,
		domain.EventMeta{UserAgent: payload.UserAgent, Location: payload.Location})
	if err != nil {
		logger.ErrorContext(ctx, "failed to process delivery event",
			"provider_message_id", payload.ProviderMessageID, "error", err)
		http.Error(w, "Internal server error processing event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Event received")); err != nil {
		logger.WarnContext(ctx, "failed to write webhook success response", "error", err)
	}
}
