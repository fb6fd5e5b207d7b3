package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/delivery_service/domain"
	"github.com/cleardue/golang_services/internal/delivery_service/repository"
)

// NATS subject for accepted delivery events.
const SubjectDeliveryEventProcessed = "deliveries.events.processed"

// EventPublisher publishes processed delivery events for downstream
// consumers. Satisfied by messagebroker.NATSClient; may be nil.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// ProcessedEvent is the payload published for every accepted delivery event.
type ProcessedEvent struct {
	SendLogID  uuid.UUID                  `json:"send_log_id"`
	CompanyID  uuid.UUID                  `json:"company_id"`
	CampaignID *uuid.UUID                 `json:"campaign_id,omitempty"`
	EventType  domain.EventType           `json:"event_type"`
	NewStatus  core_domain.DeliveryStatus `json:"new_status"`
	OccurredAt time.Time                  `json:"occurred_at"`
}

// casRetries bounds the reload-and-retry loop when concurrent events race on
// the same send log.
const casRetries = 3

// EventProcessor applies provider delivery events to send logs. Webhook
// delivery is at-least-once and out-of-order, so the processor is strictly
// idempotent: duplicates and non-advancing events are accepted no-ops, and
// events for unknown provider message ids are logged and discarded.
type EventProcessor struct {
	repo   repository.DeliveryRepository
	events EventPublisher
	logger *slog.Logger
}

// NewEventProcessor creates an EventProcessor. events may be nil.
func NewEventProcessor(repo repository.DeliveryRepository, events EventPublisher, logger *slog.Logger) *EventProcessor {
	return &EventProcessor{
		repo:   repo,
		events: events,
		logger: logger.With("service", "delivery_event_processor"),
	}
}

// ApplyEvent processes one provider delivery event. It returns an error only
// for infrastructure failures; every semantically ignorable event resolves
// to nil so the webhook caller can acknowledge it.
func (p *EventProcessor) ApplyEvent(ctx context.Context, providerMessageID string, eventType domain.EventType, occurredAt time.Time, meta domain.EventMeta) error {
	logger := p.logger.With("provider_message_id", providerMessageID, "event_type", eventType)

	nextStatus, known := eventType.DeliveryStatus()
	if !known {
		logger.WarnContext(ctx, "unknown delivery event type, discarding")
		deliveryEventsTotal.WithLabelValues(string(eventType), resultUnknownType).Inc()
		return nil
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		sendLog, err := p.repo.GetByProviderMessageID(ctx, providerMessageID)
		if err != nil {
			if errors.Is(err, domain.ErrSendLogNotFound) {
				// The provider may report on messages sent outside this
				// system or before correlation was recorded.
				logger.InfoContext(ctx, "delivery event for unknown provider message id, discarding")
				deliveryEventsTotal.WithLabelValues(string(eventType), resultUnknownMessage).Inc()
				return nil
			}
			deliveryEventsTotal.WithLabelValues(string(eventType), resultError).Inc()
			return fmt.Errorf("correlating provider message id %s: %w", providerMessageID, err)
		}

		if !sendLog.Status.CanAdvanceTo(nextStatus) {
			logger.InfoContext(ctx, "non-advancing delivery event ignored",
				"current_status", sendLog.Status, "event_status", nextStatus)
			deliveryEventsTotal.WithLabelValues(string(eventType), resultIgnored).Inc()
			return nil
		}

		expected := sendLog.Status
		sendLog.MarkStatus(nextStatus, occurredAt)
		event := &domain.EngagementEvent{
			ID:         uuid.New(),
			SendLogID:  sendLog.ID,
			Type:       eventType,
			OccurredAt: occurredAt,
			UserAgent:  meta.UserAgent,
			Location:   meta.Location,
			CreatedAt:  time.Now().UTC(),
		}

		applied, err := p.repo.ApplyEvent(ctx, sendLog, expected, event)
		if err != nil {
			deliveryEventsTotal.WithLabelValues(string(eventType), resultError).Inc()
			return fmt.Errorf("applying delivery event to send log %s: %w", sendLog.ID, err)
		}
		if !applied {
			// A concurrent event won the guarded update; re-validate against
			// the fresh status.
			continue
		}

		logger.InfoContext(ctx, "delivery event applied",
			"send_log_id", sendLog.ID, "new_status", nextStatus)
		deliveryEventsTotal.WithLabelValues(string(eventType), resultApplied).Inc()
		p.publishProcessed(ctx, sendLog, eventType, nextStatus, occurredAt)
		return nil
	}

	// Contention every round means another event stream is driving this log
	// forward; by idempotence the event is safe to drop.
	logger.WarnContext(ctx, "delivery event dropped after repeated update contention")
	deliveryEventsTotal.WithLabelValues(string(eventType), resultIgnored).Inc()
	return nil
}

func (p *EventProcessor) publishProcessed(ctx context.Context, sendLog *core_domain.SendLog, eventType domain.EventType, newStatus core_domain.DeliveryStatus, occurredAt time.Time) {
	if p.events == nil {
		return
	}
	payload := ProcessedEvent{
		SendLogID:  sendLog.ID,
		CompanyID:  sendLog.CompanyID,
		CampaignID: sendLog.CampaignID,
		EventType:  eventType,
		NewStatus:  newStatus,
		OccurredAt: occurredAt,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal processed delivery event", "error", err)
		return
	}
	if err := p.events.Publish(ctx, SubjectDeliveryEventProcessed, data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish processed delivery event",
			"send_log_id", sendLog.ID, "error", err)
	}
}
