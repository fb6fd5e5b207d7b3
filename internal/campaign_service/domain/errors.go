package domain

import "errors"

var (
	// ErrCampaignNotFound is returned when a referenced campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignAlreadyRunning is returned for a start or resume call while
	// an execution loop is already active for the campaign id. Callers can
	// distinguish "already running" from "failed to start".
	ErrCampaignAlreadyRunning = errors.New("campaign execution already running")
	// ErrCampaignNotRunning is returned for a pause call when no execution
	// loop is active for the campaign id.
	ErrCampaignNotRunning = errors.New("campaign execution not running")
	// ErrInvalidTransition is returned for a lifecycle operation the
	// campaign's current status does not permit.
	ErrInvalidTransition = errors.New("invalid campaign status transition")
	// ErrNoRecipients is returned when starting a campaign with an empty
	// recipient set. Rejected before any send attempt.
	ErrNoRecipients = errors.New("campaign has no recipients")
)
