package repository

import (
	"context"

	"github.com/cleardue/golang_services/internal/core_domain"
	"github.com/cleardue/golang_services/internal/delivery_service/domain"
)

// DeliveryRepository correlates provider events with send logs and persists
// accepted transitions.
type DeliveryRepository interface {
	// GetByProviderMessageID returns the send log correlated to the provider
	// message id, or domain.ErrSendLogNotFound.
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*core_domain.SendLog, error)

	// ApplyEvent commits the send-log status update and the engagement event
	// insert in one transaction. The update is guarded on expected, the
	// status observed before validation: a report of false means a concurrent
	// event moved the log first and nothing was written.
	ApplyEvent(ctx context.Context, log *core_domain.SendLog, expected core_domain.DeliveryStatus, event *domain.EngagementEvent) (bool, error)
}
