package mailprovider

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MockMailProvider is a test and local-development implementation of Adapter.
type MockMailProvider struct {
	logger *slog.Logger

	// FailKind, when non-empty, makes every Send return a ProviderError of
	// that kind.
	FailKind       FailureKind
	SimulatedDelay time.Duration
}

// NewMockMailProvider creates a MockMailProvider.
func NewMockMailProvider(logger *slog.Logger) *MockMailProvider {
	return &MockMailProvider{logger: logger.With("provider", "mock")}
}

// Send simulates submitting an email to a provider.
func (p *MockMailProvider) Send(ctx context.Context, details SendRequestDetails) (*SendResponseDetails, error) {
	if p.SimulatedDelay > 0 {
		select {
		case <-time.After(p.SimulatedDelay):
		case <-ctx.Done():
			return nil, &ProviderError{Kind: FailureTransient, Message: "send cancelled", Err: ctx.Err()}
		}
	}

	if p.FailKind != "" {
		p.logger.WarnContext(ctx, "mock provider simulated failure",
			"kind", p.FailKind, "recipient", details.To)
		return nil, &ProviderError{Kind: p.FailKind, Message: "mock provider simulated failure"}
	}

	providerMsgID := "mock-" + uuid.NewString()
	p.logger.DebugContext(ctx, "mock provider accepted email",
		"recipient", details.To, "provider_message_id", providerMsgID)

	return &SendResponseDetails{
		ProviderMessageID: providerMsgID,
		ProviderStatus:    "accepted",
	}, nil
}

// GetName returns the provider name.
func (p *MockMailProvider) GetName() string { return "mock" }
