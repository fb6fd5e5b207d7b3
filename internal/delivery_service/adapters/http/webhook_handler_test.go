package http_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	adapter_http "github.com/cleardue/golang_services/internal/delivery_service/adapters/http"
	"github.com/cleardue/golang_services/internal/delivery_service/domain"
)

// MockDeliveryEventApplier provides a mock implementation of the
// DeliveryEventApplier interface.
type MockDeliveryEventApplier struct {
	mock.Mock
}

func (m *MockDeliveryEventApplier) ApplyEvent(ctx context.Context, providerMessageID string, eventType domain.EventType, occurredAt time.Time, meta domain.EventMeta) error {
	args := m.Called(ctx, providerMessageID, eventType, occurredAt, meta)
	return args.Error(0)
}

func newWebhookTestHandler() (*adapter_http.WebhookHandler, *MockDeliveryEventApplier) {
	mockAppService := new(MockDeliveryEventApplier)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return adapter_http.NewWebhookHandler(mockAppService, logger), mockAppService
}

func TestWebhookHandler_HandleDeliveryEvent_Success(t *testing.T) {
	handler, mockAppService := newWebhookTestHandler()

	occurredAt := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	payload := []byte(`{
		"provider_message_id": "pm-123",
		"event_type": "delivered",
		"occurred_at": "2026-08-25T10:00:00Z",
		"user_agent": "Mozilla/5.0",
		"location": "DE"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()

	mockAppService.On("ApplyEvent", mock.Anything, "pm-123", domain.EventDelivered, occurredAt,
		domain.EventMeta{UserAgent: "Mozilla/5.0", Location: "DE"}).Return(nil).Once()

	handler.HandleDeliveryEvent(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Event received", rr.Body.String())
	mockAppService.AssertExpectations(t)
}

func TestWebhookHandler_HandleDeliveryEvent_UnknownMessageStill200(t *testing.T) {
	handler, mockAppService := newWebhookTestHandler()

	payload := []byte(`{"provider_message_id": "never-seen", "event_type": "opened", "occurred_at": "2026-08-25T10:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()

	// The processor resolves correlation misses to nil; the handler must
	// acknowledge so the provider stops redelivering.
	mockAppService.On("ApplyEvent", mock.Anything, "never-seen", domain.EventOpened, mock.Anything, mock.Anything).
		Return(nil).Once()

	handler.HandleDeliveryEvent(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockAppService.AssertExpectations(t)
}

func TestWebhookHandler_HandleDeliveryEvent_UnparseablePayload(t *testing.T) {
	handler, mockAppService := newWebhookTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", bytes.NewBufferString(`{not json`))
	rr := httptest.NewRecorder()

	handler.HandleDeliveryEvent(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Unparseable payload")
	mockAppService.AssertNotCalled(t, "ApplyEvent")
}

func TestWebhookHandler_HandleDeliveryEvent_MissingRequiredFields(t *testing.T) {
	handler, mockAppService := newWebhookTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", bytes.NewBufferString(`{"event_type": "delivered"}`))
	rr := httptest.NewRecorder()

	handler.HandleDeliveryEvent(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Missing required fields")
	mockAppService.AssertNotCalled(t, "ApplyEvent")
}

func TestWebhookHandler_HandleDeliveryEvent_BodyTooLarge(t *testing.T) {
	handler, mockAppService := newWebhookTestHandler()

	largePayload := make([]byte, adapter_http.MaxRequestBodySize+1)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", bytes.NewBuffer(largePayload))
	rr := httptest.NewRecorder()

	handler.HandleDeliveryEvent(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	mockAppService.AssertNotCalled(t, "ApplyEvent")
}

type errorReader struct{}

func (er *errorReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("simulated read error")
}

func TestWebhookHandler_HandleDeliveryEvent_ErrorReadingBody(t *testing.T) {
	handler, mockAppService := newWebhookTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", &errorReader{})
	rr := httptest.NewRecorder()

	handler.HandleDeliveryEvent(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockAppService.AssertNotCalled(t, "ApplyEvent")
}

func TestWebhookHandler_HandleDeliveryEvent_ProcessorError(t *testing.T) {
	handler, mockAppService := newWebhookTestHandler()

	payload := []byte(`{"provider_message_id": "pm-123", "event_type": "delivered", "occurred_at": "2026-08-25T10:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email/events", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()

	mockAppService.On("ApplyEvent", mock.Anything, "pm-123", domain.EventDelivered, mock.Anything, mock.Anything).
		Return(errors.New("database unavailable")).Once()

	handler.HandleDeliveryEvent(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	mockAppService.AssertExpectations(t)
}
