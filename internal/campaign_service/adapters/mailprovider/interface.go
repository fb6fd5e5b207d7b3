package mailprovider

import (
	"context"
	"fmt"
)

// FailureKind classifies a provider send failure for the retry policy.
type FailureKind string

const (
	FailureRateLimited      FailureKind = "RATE_LIMITED"
	FailureInvalidRecipient FailureKind = "INVALID_RECIPIENT"
	FailureAuthFailed       FailureKind = "AUTH_FAILED"
	FailureTransient        FailureKind = "TRANSIENT"
)

// ProviderError is the typed failure returned by mail provider adapters.
type ProviderError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mail provider failure (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("mail provider failure (%s): %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the campaign engine may retry this failure.
// Everything except rate limiting and transient faults is permanent for the
// affected recipient.
func (e *ProviderError) Retryable() bool {
	return e.Kind == FailureRateLimited || e.Kind == FailureTransient
}

// SendRequestDetails holds the data for sending one email via a provider.
type SendRequestDetails struct {
	InternalMessageID string // our SendLog id, for tracing
	FromAddress       string
	FromName          string
	To                string
	Subject           string
	HTMLBody          string
	TextBody          string
	Headers           map[string]string // provider-specific headers
}

// SendResponseDetails holds the outcome of a successful submission.
type SendResponseDetails struct {
	ProviderMessageID string // unique per send attempt, webhook correlation key
	ProviderStatus    string // raw status text from the provider
}

// Adapter defines the interface for a mail provider adapter.
type Adapter interface {
	Send(ctx context.Context, details SendRequestDetails) (*SendResponseDetails, error)
	GetName() string
}
