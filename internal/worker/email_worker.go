package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/models"
	"github.com/sportfabrik/bonuscard/internal/repository"
	"github.com/sportfabrik/bonuscard/internal/service"

	"gorm.io/gorm"
)

const maxFetchBackoff = time.Minute

// EmailDeliveryOptions tunes the outbox polling loop.
type EmailDeliveryOptions struct {
	BatchSize    int
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	PollInterval time.Duration
}

func (o EmailDeliveryOptions) normalized() EmailDeliveryOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	return o
}

// EmailDeliveryService polls the email outbox and delivers queued
// receipts. Batches are claimed with a short lease so parallel workers
// never send the same receipt; failed sends are rescheduled per item
// instead of stalling the loop.
type EmailDeliveryService struct {
	name        string
	receiptRepo repository.EmailReceiptRepository
	renderer    *service.ReceiptRenderer
	mailer      service.Mailer
	opts        EmailDeliveryOptions

	inFlight sync.WaitGroup
}

// NewEmailDeliveryService creates the delivery service.
func NewEmailDeliveryService(
	receiptRepo repository.EmailReceiptRepository,
	renderer *service.ReceiptRenderer,
	mailer service.Mailer,
	opts EmailDeliveryOptions,
) *EmailDeliveryService {
	return &EmailDeliveryService{
		name:        "email-delivery",
		receiptRepo: receiptRepo,
		renderer:    renderer,
		mailer:      mailer,
		opts:        opts.normalized(),
	}
}

// Name returns the service name.
func (s *EmailDeliveryService) Name() string {
	if s == nil || s.name == "" {
		return "email-delivery"
	}
	return s.name
}

// Start runs the polling loop until the context is cancelled.
func (s *EmailDeliveryService) Start(ctx context.Context) error {
	if s == nil || s.receiptRepo == nil || s.renderer == nil || s.mailer == nil {
		return errors.New("email delivery not initialized")
	}
	logger.Infow("worker_email_delivery_started",
		"batch_size", s.opts.BatchSize,
		"concurrency", s.opts.Concurrency,
		"poll_interval", s.opts.PollInterval.String(),
	)

	s.pollOnce(ctx)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.inFlight.Wait()
			return nil
		case <-ticker.C:
			if err := s.pollOnce(ctx); err != nil {
				// Fetch failures back the loop off without touching
				// individual receipts.
				backoff := 2 * s.opts.PollInterval
				if backoff > maxFetchBackoff {
					backoff = maxFetchBackoff
				}
				logger.Warnw("worker_receipt_batch_fetch_failed", "error", err, "backoff", backoff.String())
				if !sleepCtx(ctx, backoff) {
					s.inFlight.Wait()
					return nil
				}
			}
		}
	}
}

// Stop waits for in-flight sends to finish.
func (s *EmailDeliveryService) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollOnce claims one batch and delivers it with bounded concurrency.
func (s *EmailDeliveryService) pollOnce(ctx context.Context) error {
	batch, err := s.claimBatch()
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	sem := make(chan struct{}, s.opts.Concurrency)
	for i := range batch {
		receipt := batch[i]
		select {
		case <-ctx.Done():
			return nil
		case sem <- struct{}{}:
		}
		s.inFlight.Add(1)
		go func() {
			defer s.inFlight.Done()
			defer func() { <-sem }()
			s.deliver(&receipt)
		}()
	}
	return nil
}

// claimBatch selects due queued receipts and leases them past the
// retry backoff in one transaction. Claimed rows commit out of sight
// of competing pollers.
func (s *EmailDeliveryService) claimBatch() ([]models.EmailReceipt, error) {
	var batch []models.EmailReceipt
	err := s.receiptRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.receiptRepo.WithTx(tx)
		claimed, err := repo.ClaimDueBatch(s.opts.BatchSize, time.Now())
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			batch = nil
			return nil
		}
		ids := make([]uint, 0, len(claimed))
		for _, receipt := range claimed {
			ids = append(ids, receipt.ID)
		}
		if err := repo.Lease(ids, time.Now().Add(s.opts.RetryBackoff)); err != nil {
			return err
		}
		batch = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// deliver renders and sends one receipt and records the outcome.
func (s *EmailDeliveryService) deliver(receipt *models.EmailReceipt) {
	rendered, err := s.renderer.Render(receipt)
	if err != nil {
		// An unrenderable snapshot never becomes sendable, fail it
		// closed instead of burning retries.
		s.markFailed(receipt, err)
		logger.Errorw("worker_receipt_data_invalid", "receipt_id", receipt.ID, "error", err)
		return
	}

	messageID, err := s.mailer.Send(service.OutboundEmail{
		To:       receipt.ToEmail,
		Subject:  rendered.Subject,
		BodyText: rendered.BodyText,
		BodyHTML: rendered.BodyHTML,
	})
	if err != nil {
		if isPermanentSendError(err) {
			s.markFailed(receipt, err)
			logger.Errorw("worker_receipt_rejected", "receipt_id", receipt.ID, "error", err)
			return
		}
		s.handleTransientFailure(receipt, err)
		return
	}

	now := time.Now()
	receipt.Status = constants.ReceiptStatusSent
	receipt.SentAt = &now
	receipt.MessageID = &messageID
	receipt.LastError = nil
	if err := s.receiptRepo.Update(receipt); err != nil {
		logger.Errorw("worker_receipt_mark_sent_failed", "receipt_id", receipt.ID, "error", err)
		return
	}
	logger.Infow("worker_receipt_sent",
		"receipt_id", receipt.ID,
		"card_serial", receipt.CardSerial,
		"message_id", messageID,
	)
}

// handleTransientFailure counts the attempt and either reschedules the
// receipt or gives up after the retry budget.
func (s *EmailDeliveryService) handleTransientFailure(receipt *models.EmailReceipt, sendErr error) {
	receipt.Attempts++
	message := sendErr.Error()
	receipt.LastError = &message

	if receipt.Attempts >= s.opts.MaxRetries {
		receipt.Status = constants.ReceiptStatusFailed
		if err := s.receiptRepo.Update(receipt); err != nil {
			logger.Errorw("worker_receipt_mark_failed_failed", "receipt_id", receipt.ID, "error", err)
			return
		}
		logger.Errorw("worker_receipt_retries_exhausted",
			"receipt_id", receipt.ID,
			"attempts", receipt.Attempts,
			"error", sendErr,
		)
		return
	}

	receipt.Status = constants.ReceiptStatusQueued
	receipt.NextAttemptAt = time.Now().Add(s.opts.RetryBackoff)
	if err := s.receiptRepo.Update(receipt); err != nil {
		logger.Errorw("worker_receipt_reschedule_failed", "receipt_id", receipt.ID, "error", err)
		return
	}
	logger.Warnw("worker_receipt_send_failed",
		"receipt_id", receipt.ID,
		"attempts", receipt.Attempts,
		"next_attempt_at", receipt.NextAttemptAt,
		"error", sendErr,
	)
}

func (s *EmailDeliveryService) markFailed(receipt *models.EmailReceipt, cause error) {
	receipt.Attempts++
	receipt.Status = constants.ReceiptStatusFailed
	message := cause.Error()
	receipt.LastError = &message
	if err := s.receiptRepo.Update(receipt); err != nil {
		logger.Errorw("worker_receipt_mark_failed_failed", "receipt_id", receipt.ID, "error", err)
	}
}

// isPermanentSendError reports failures that retrying cannot fix.
func isPermanentSendError(err error) bool {
	return errors.Is(err, service.ErrEmailRecipientRejected) ||
		errors.Is(err, service.ErrInvalidEmail)
}

// sleepCtx sleeps for d unless the context ends first. Returns false
// when cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
