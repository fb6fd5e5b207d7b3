package mailprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// PostmarkProvider sends email through the Postmark HTTP API.
type PostmarkProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

// NewPostmarkProvider creates a PostmarkProvider. A nil httpClient gets a
// default client with a 10s timeout.
func NewPostmarkProvider(logger *slog.Logger, apiURL, apiKey string, httpClient *http.Client) *PostmarkProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PostmarkProvider{
		logger:     logger.With("provider", "postmark"),
		httpClient: httpClient,
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

type postmarkHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type postmarkSendRequest struct {
	From     string           `json:"From"`
	To       string           `json:"To"`
	Subject  string           `json:"Subject"`
	HTMLBody string           `json:"HtmlBody,omitempty"`
	TextBody string           `json:"TextBody,omitempty"`
	Headers  []postmarkHeader `json:"Headers,omitempty"`
}

type postmarkSendResponse struct {
	MessageID   string `json:"MessageID"`
	ErrorCode   int    `json:"ErrorCode"`
	Message     string `json:"Message"`
	SubmittedAt string `json:"SubmittedAt"`
}

// Postmark API error codes that indicate the recipient itself is the problem.
const (
	postmarkErrInvalidEmail      = 300
	postmarkErrInactiveRecipient = 406
)

// Send submits one email to Postmark and normalizes failures into
// ProviderError kinds so the campaign engine can apply its retry policy.
func (p *PostmarkProvider) Send(ctx context.Context, details SendRequestDetails) (*SendResponseDetails, error) {
	from := details.FromAddress
	if details.FromName != "" {
		from = fmt.Sprintf("%s <%s>", details.FromName, details.FromAddress)
	}

	reqBody := postmarkSendRequest{
		From:     from,
		To:       details.To,
		Subject:  details.Subject,
		HTMLBody: details.HTMLBody,
		TextBody: details.TextBody,
	}
	for name, value := range details.Headers {
		reqBody.Headers = append(reqBody.Headers, postmarkHeader{Name: name, Value: value})
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ProviderError{Kind: FailureTransient, Message: "failed to marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/email", bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, &ProviderError{Kind: FailureTransient, Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Postmark-Server-Token", p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "postmark request failed",
			"error", err, "internal_message_id", details.InternalMessageID)
		return nil, &ProviderError{Kind: FailureTransient, Message: "request to provider failed", Err: err}
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{Kind: FailureTransient, Message: "failed to read provider response", Err: err}
	}

	var resp postmarkSendResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, &ProviderError{
			Kind:    FailureTransient,
			Message: fmt.Sprintf("unparseable provider response (HTTP %d)", httpResp.StatusCode),
			Err:     err,
		}
	}

	switch {
	case httpResp.StatusCode == http.StatusOK && resp.ErrorCode == 0:
		p.logger.InfoContext(ctx, "postmark accepted email",
			"provider_message_id", resp.MessageID, "internal_message_id", details.InternalMessageID)
		return &SendResponseDetails{
			ProviderMessageID: resp.MessageID,
			ProviderStatus:    "accepted",
		}, nil
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, &ProviderError{Kind: FailureAuthFailed, Message: resp.Message}
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, &ProviderError{Kind: FailureRateLimited, Message: resp.Message}
	case resp.ErrorCode == postmarkErrInvalidEmail || resp.ErrorCode == postmarkErrInactiveRecipient:
		return nil, &ProviderError{
			Kind:    FailureInvalidRecipient,
			Message: fmt.Sprintf("postmark error %d: %s", resp.ErrorCode, resp.Message),
		}
	case httpResp.StatusCode >= 500:
		return nil, &ProviderError{
			Kind:    FailureTransient,
			Message: fmt.Sprintf("provider unavailable (HTTP %d): %s", httpResp.StatusCode, resp.Message),
		}
	default:
		// Remaining 4xx API errors are treated as permanent for this recipient.
		return nil, &ProviderError{
			Kind:    FailureInvalidRecipient,
			Message: fmt.Sprintf("postmark rejected send (HTTP %d, error %d): %s", httpResp.StatusCode, resp.ErrorCode, resp.Message),
		}
	}
}

// GetName returns the provider name.
func (p *PostmarkProvider) GetName() string { return "postmark" }
