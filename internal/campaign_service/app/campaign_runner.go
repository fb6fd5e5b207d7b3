package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cleardue/golang_services/internal/campaign_service/adapters/mailprovider"
	"github.com/cleardue/golang_services/internal/campaign_service/domain"
	"github.com/cleardue/golang_services/internal/campaign_service/repository"
	"github.com/cleardue/golang_services/internal/core_domain"
)

// NATS subject for campaign lifecycle events.
const SubjectCampaignStatusChanged = "campaigns.status.changed"

// EventPublisher publishes campaign lifecycle events for downstream
// consumers. Satisfied by messagebroker.NATSClient; may be nil.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// CampaignStatusEvent is the payload published on status transitions.
type CampaignStatusEvent struct {
	CampaignID uuid.UUID             `json:"campaign_id"`
	CompanyID  uuid.UUID             `json:"company_id"`
	Status     domain.CampaignStatus `json:"status"`
	Reason     *string               `json:"reason,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// RunnerConfig holds the campaign execution tunables. Batch size and delay
// are backpressure against provider throughput limits, not a performance
// knob: exceeding a provider's per-second limit causes outright rejection.
type RunnerConfig struct {
	BatchSize      int
	BatchDelay     time.Duration
	MaxRetries     int // additional attempts after the first failure
	RetryBaseDelay time.Duration
	DailyQuota     int // per company, per calendar day
	FromAddress    string
	FromName       string
}

// DefaultRunnerConfig returns the documented defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		BatchSize:      5,
		BatchDelay:     3 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: 500 * time.Millisecond,
		DailyQuota:     1000,
	}
}

// runHandle is the in-memory ownership record of one active execution loop.
// Its presence in the runner's registry is what makes duplicate starts fail.
type runHandle struct {
	pauseRequested atomic.Bool
}

// CampaignRunner executes reminder campaigns: it freezes the recipient
// snapshot, dispatches fixed-size batches under the provider rate limit and
// the company's daily quota, retries transient per-recipient failures, and
// persists one send-log record per attempt. At most one execution loop per
// campaign id is active at any time.
type CampaignRunner struct {
	campaignRepo repository.CampaignRepository
	sendLogRepo  repository.SendLogRepository
	quotaRepo    repository.QuotaRepository
	provider     mailprovider.Adapter
	events       EventPublisher
	logger       *slog.Logger
	cfg          RunnerConfig

	mu     sync.Mutex
	active map[uuid.UUID]*runHandle
	wg     sync.WaitGroup
}

// NewCampaignRunner creates a CampaignRunner. events may be nil.
func NewCampaignRunner(
	campaignRepo repository.CampaignRepository,
	sendLogRepo repository.SendLogRepository,
	quotaRepo repository.QuotaRepository,
	provider mailprovider.Adapter,
	events EventPublisher,
	logger *slog.Logger,
	cfg RunnerConfig,
) *CampaignRunner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	return &CampaignRunner{
		campaignRepo: campaignRepo,
		sendLogRepo:  sendLogRepo,
		quotaRepo:    quotaRepo,
		provider:     provider,
		events:       events,
		logger:       logger.With("service", "campaign_runner"),
		cfg:          cfg,
		active:       make(map[uuid.UUID]*runHandle),
	}
}

// Start freezes the recipient snapshot, transitions the campaign from draft
// to sending and launches the execution loop. It returns immediately with a
// progress estimate; the loop runs detached and is observed via GetProgress.
// A second Start while the loop is active is rejected with
// ErrCampaignAlreadyRunning, not queued.
func (r *CampaignRunner) Start(ctx context.Context, campaignID uuid.UUID, recipients []*domain.Recipient) (*domain.Progress, error) {
	if len(recipients) == 0 {
		return nil, domain.ErrNoRecipients
	}

	handle, err := r.acquire(campaignID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i, rec := range recipients {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		rec.CampaignID = campaignID
		rec.Position = i
		rec.State = domain.RecipientStatePending
		rec.CreatedAt = now
	}

	started, err := r.campaignRepo.StartSending(ctx, campaignID, recipients, now)
	if err != nil {
		r.release(campaignID)
		return nil, fmt.Errorf("failed to start campaign %s: %w", campaignID, err)
	}
	if !started {
		r.release(campaignID)
		campaign, getErr := r.campaignRepo.GetByID(ctx, campaignID)
		if getErr != nil {
			return nil, getErr
		}
		if campaign.Status == domain.CampaignStatusSending {
			return nil, domain.ErrCampaignAlreadyRunning
		}
		return nil, fmt.Errorf("%w: cannot start campaign in status %s", domain.ErrInvalidTransition, campaign.Status)
	}

	campaign, err := r.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		r.release(campaignID)
		return nil, err
	}

	campaignsStartedTotal.Inc()
	r.publishStatus(ctx, campaign, domain.CampaignStatusSending, nil)
	r.launch(campaign, handle)
	return r.progressOf(campaign), nil
}

// Resume continues a paused campaign with its remaining unattempted
// recipients. The frozen snapshot is not re-evaluated.
func (r *CampaignRunner) Resume(ctx context.Context, campaignID uuid.UUID) (*domain.Progress, error) {
	handle, err := r.acquire(campaignID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	resumed, err := r.campaignRepo.TransitionStatus(ctx, campaignID, domain.CampaignStatusPaused, domain.CampaignStatusSending, nil, now)
	if err != nil {
		r.release(campaignID)
		return nil, fmt.Errorf("failed to resume campaign %s: %w", campaignID, err)
	}
	if !resumed {
		r.release(campaignID)
		campaign, getErr := r.campaignRepo.GetByID(ctx, campaignID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: cannot resume campaign in status %s", domain.ErrInvalidTransition, campaign.Status)
	}

	campaign, err := r.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		r.release(campaignID)
		return nil, err
	}

	r.publishStatus(ctx, campaign, domain.CampaignStatusSending, nil)
	r.launch(campaign, handle)
	return r.progressOf(campaign), nil
}

// Pause requests a cooperative stop. The running loop observes the flag at
// the next batch boundary, never mid-batch, and records the pause reason.
func (r *CampaignRunner) Pause(ctx context.Context, campaignID uuid.UUID) error {
	r.mu.Lock()
	handle, ok := r.active[campaignID]
	r.mu.Unlock()
	if !ok {
		return domain.ErrCampaignNotRunning
	}
	handle.pauseRequested.Store(true)
	r.logger.InfoContext(ctx, "campaign pause requested", "campaign_id", campaignID)
	return nil
}

// GetProgress returns the pull-based progress view computed from persisted
// counters, so it works mid-run, after a pause, and across process restarts.
func (r *CampaignRunner) GetProgress(ctx context.Context, campaignID uuid.UUID) (*domain.Progress, error) {
	campaign, err := r.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return r.progressOf(campaign), nil
}

// Wait blocks until all active execution loops have exited. Used on shutdown.
func (r *CampaignRunner) Wait() { r.wg.Wait() }

func (r *CampaignRunner) acquire(campaignID uuid.UUID) (*runHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.active[campaignID]; exists {
		return nil, domain.ErrCampaignAlreadyRunning
	}
	handle := &runHandle{}
	r.active[campaignID] = handle
	return handle, nil
}

func (r *CampaignRunner) release(campaignID uuid.UUID) {
	r.mu.Lock()
	delete(r.active, campaignID)
	r.mu.Unlock()
}

func (r *CampaignRunner) launch(campaign *domain.Campaign, handle *runHandle) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(campaign.ID)
		// The loop outlives the request that started it.
		r.run(context.Background(), campaign, handle)
	}()
}

// run is the batch loop. Within a batch sends are dispatched concurrently;
// batch-to-batch ordering is strict so the inter-batch delay actually bounds
// provider throughput.
func (r *CampaignRunner) run(ctx context.Context, campaign *domain.Campaign, handle *runHandle) {
	logger := r.logger.With("campaign_id", campaign.ID, "company_id", campaign.CompanyID)

	pending, err := r.campaignRepo.ListPendingRecipients(ctx, campaign.ID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list pending recipients", "error", err)
		r.fail(ctx, campaign, fmt.Sprintf("failed to load recipient snapshot: %v", err))
		return
	}
	logger.InfoContext(ctx, "campaign execution loop started",
		"pending", len(pending), "batch_size", r.cfg.BatchSize, "batch_delay", r.cfg.BatchDelay)

	for start := 0; start < len(pending); start += r.cfg.BatchSize {
		if handle.pauseRequested.Load() {
			r.pauseCampaign(ctx, campaign, domain.PauseReasonRequested)
			return
		}

		end := start + r.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		granted, err := r.quotaRepo.TryConsume(ctx, campaign.CompanyID, time.Now().UTC(), len(batch), r.cfg.DailyQuota)
		if err != nil {
			logger.ErrorContext(ctx, "quota check failed", "error", err)
			r.fail(ctx, campaign, fmt.Sprintf("quota check failed: %v", err))
			return
		}
		if !granted {
			// Quota exhaustion is a hard external constraint, not an error:
			// the campaign pauses itself and can be resumed tomorrow.
			logger.WarnContext(ctx, "daily send quota exhausted, pausing campaign",
				"remaining_recipients", len(pending)-start)
			r.pauseCampaign(ctx, campaign, domain.PauseReasonQuotaExhausted)
			return
		}

		var wg sync.WaitGroup
		for _, recipient := range batch {
			wg.Add(1)
			go func(rec *domain.Recipient) {
				defer wg.Done()
				r.sendOne(ctx, campaign, rec)
			}(recipient)
		}
		wg.Wait()
		batchesDispatchedTotal.Inc()

		if end < len(pending) {
			time.Sleep(r.cfg.BatchDelay)
		}
	}

	r.complete(ctx, campaign)
}

// sendOne performs one recipient's send with the bounded retry policy and
// persists exactly one send-log record for the attempt chain. A recipient's
// failure never aborts the batch or the campaign.
func (r *CampaignRunner) sendOne(ctx context.Context, campaign *domain.Campaign, recipient *domain.Recipient) {
	logger := r.logger.With("campaign_id", campaign.ID, "recipient", recipient.Email)
	now := time.Now().UTC()

	sendLog := &core_domain.SendLog{
		ID:                uuid.New(),
		CompanyID:         campaign.CompanyID,
		CampaignID:        &campaign.ID,
		CustomerID:        recipient.CustomerID,
		CoveredInvoiceIDs: recipient.InvoiceIDs,
		RecipientEmail:    recipient.Email,
		Subject:           recipient.Subject,
		Body:              recipient.Body,
		Status:            core_domain.DeliveryStatusQueued,
		ProviderName:      r.provider.GetName(),
		QueuedAt:          now,
		UpdatedAt:         now,
	}
	if len(recipient.InvoiceIDs) == 1 {
		if invoiceID, err := uuid.Parse(recipient.InvoiceIDs[0]); err == nil {
			sendLog.InvoiceID = &invoiceID
		}
	}

	details := mailprovider.SendRequestDetails{
		InternalMessageID: sendLog.ID.String(),
		FromAddress:       r.cfg.FromAddress,
		FromName:          r.cfg.FromName,
		To:                recipient.Email,
		Subject:           recipient.Subject,
		HTMLBody:          recipient.Body,
	}

	var resp *mailprovider.SendResponseDetails
	var lastErr error
	attempt := 0
	for {
		timer := prometheus.NewTimer(providerSendDurationHist.WithLabelValues(r.provider.GetName()))
		resp, lastErr = r.provider.Send(ctx, details)
		timer.ObserveDuration()

		if lastErr == nil {
			break
		}

		var provErr *mailprovider.ProviderError
		retryable := errors.As(lastErr, &provErr) && provErr.Retryable()
		if !retryable || attempt >= r.cfg.MaxRetries {
			break
		}
		// Growing delay between attempts, bounded by the retry budget.
		time.Sleep(r.cfg.RetryBaseDelay * time.Duration(attempt+1))
		attempt++
		logger.WarnContext(ctx, "retrying recipient send",
			"attempt", attempt, "error", lastErr)
	}
	sendLog.RetryCount = attempt

	attemptedAt := time.Now().UTC()
	var state domain.RecipientState
	if lastErr == nil {
		sendLog.MarkStatus(core_domain.DeliveryStatusSent, attemptedAt)
		sendLog.ProviderMessageID = &resp.ProviderMessageID
		state = domain.RecipientStateSent
		sendAttemptsTotal.WithLabelValues("sent").Inc()
	} else {
		errMsg := lastErr.Error()
		sendLog.MarkStatus(core_domain.DeliveryStatusFailed, attemptedAt)
		sendLog.ErrorMessage = &errMsg
		state = domain.RecipientStateFailed
		sendAttemptsTotal.WithLabelValues("failed").Inc()
		logger.WarnContext(ctx, "recipient send failed after retries",
			"retries", sendLog.RetryCount, "error", lastErr)
	}

	if err := r.sendLogRepo.RecordAttempt(ctx, sendLog, recipient.ID, state); err != nil {
		logger.ErrorContext(ctx, "failed to record send attempt", "error", err,
			"send_log_id", sendLog.ID)
	}
}

func (r *CampaignRunner) pauseCampaign(ctx context.Context, campaign *domain.Campaign, reason string) {
	now := time.Now().UTC()
	ok, err := r.campaignRepo.TransitionStatus(ctx, campaign.ID, domain.CampaignStatusSending, domain.CampaignStatusPaused, &reason, now)
	if err != nil || !ok {
		r.logger.ErrorContext(ctx, "failed to pause campaign", "campaign_id", campaign.ID, "error", err)
		return
	}
	campaignTransitionsTotal.WithLabelValues(string(domain.CampaignStatusPaused)).Inc()
	r.publishStatus(ctx, campaign, domain.CampaignStatusPaused, &reason)
	r.logger.InfoContext(ctx, "campaign paused", "campaign_id", campaign.ID, "reason", reason)
}

func (r *CampaignRunner) complete(ctx context.Context, campaign *domain.Campaign) {
	now := time.Now().UTC()
	ok, err := r.campaignRepo.TransitionStatus(ctx, campaign.ID, domain.CampaignStatusSending, domain.CampaignStatusCompleted, nil, now)
	if err != nil || !ok {
		r.logger.ErrorContext(ctx, "failed to complete campaign", "campaign_id", campaign.ID, "error", err)
		return
	}
	campaignTransitionsTotal.WithLabelValues(string(domain.CampaignStatusCompleted)).Inc()
	r.publishStatus(ctx, campaign, domain.CampaignStatusCompleted, nil)
	r.logger.InfoContext(ctx, "campaign completed", "campaign_id", campaign.ID)
}

func (r *CampaignRunner) fail(ctx context.Context, campaign *domain.Campaign, reason string) {
	now := time.Now().UTC()
	ok, err := r.campaignRepo.TransitionStatus(ctx, campaign.ID, domain.CampaignStatusSending, domain.CampaignStatusFailed, &reason, now)
	if err != nil || !ok {
		r.logger.ErrorContext(ctx, "failed to mark campaign failed", "campaign_id", campaign.ID, "error", err)
		return
	}
	campaignTransitionsTotal.WithLabelValues(string(domain.CampaignStatusFailed)).Inc()
	r.publishStatus(ctx, campaign, domain.CampaignStatusFailed, &reason)
}

func (r *CampaignRunner) publishStatus(ctx context.Context, campaign *domain.Campaign, status domain.CampaignStatus, reason *string) {
	if r.events == nil {
		return
	}
	event := CampaignStatusEvent{
		CampaignID: campaign.ID,
		CompanyID:  campaign.CompanyID,
		Status:     status,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to marshal campaign status event", "error", err)
		return
	}
	if err := r.events.Publish(ctx, SubjectCampaignStatusChanged, data); err != nil {
		r.logger.WarnContext(ctx, "failed to publish campaign status event",
			"campaign_id", campaign.ID, "error", err)
	}
}

// progressOf derives the observable progress from persisted counters plus
// the batch configuration. The remaining-time estimate assumes one batch
// delay per remaining batch.
func (r *CampaignRunner) progressOf(campaign *domain.Campaign) *domain.Progress {
	attempted := campaign.AttemptedCount()
	percent := 0.0
	if campaign.TotalRecipients > 0 {
		percent = 100.0 * float64(attempted) / float64(campaign.TotalRecipients)
	}
	remaining := campaign.TotalRecipients - attempted
	batchesRemaining := int(math.Ceil(float64(remaining) / float64(r.cfg.BatchSize)))
	return &domain.Progress{
		CampaignID:         campaign.ID,
		Status:             campaign.Status,
		StatusReason:       campaign.StatusReason,
		Total:              campaign.TotalRecipients,
		Attempted:          attempted,
		Sent:               campaign.SentCount,
		Failed:             campaign.FailedCount,
		Skipped:            campaign.SkippedCount,
		PercentComplete:    percent,
		EstimatedRemaining: time.Duration(batchesRemaining) * r.cfg.BatchDelay,
	}
}
