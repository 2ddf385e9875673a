package service

import (
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/models"
	"github.com/sportfabrik/bonuscard/internal/repository"

	"gorm.io/gorm"
)

// ReceiptAdminService exposes the outbox to the admin monitor:
// listing, inspection, aggregate stats and manual retry of failed
// receipts.
type ReceiptAdminService struct {
	receiptRepo repository.EmailReceiptRepository
}

// NewReceiptAdminService creates a receipt admin service.
func NewReceiptAdminService(receiptRepo repository.EmailReceiptRepository) *ReceiptAdminService {
	return &ReceiptAdminService{receiptRepo: receiptRepo}
}

// ListReceipts pages through receipts, optionally filtered by status.
func (s *ReceiptAdminService) ListReceipts(filter repository.EmailReceiptListFilter) ([]models.EmailReceipt, int64, error) {
	return s.receiptRepo.List(filter)
}

// GetReceipt fetches one receipt.
func (s *ReceiptAdminService) GetReceipt(id uint) (*models.EmailReceipt, error) {
	receipt, err := s.receiptRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ErrReceiptNotFound
	}
	return receipt, nil
}

// RetryReceipt puts a failed receipt back onto the queue with a clean
// attempt counter so the worker picks it up on the next poll.
func (s *ReceiptAdminService) RetryReceipt(id uint) (*models.EmailReceipt, error) {
	var updated *models.EmailReceipt
	err := s.receiptRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.receiptRepo.WithTx(tx)
		receipt, err := repo.GetByID(id)
		if err != nil {
			return err
		}
		if receipt == nil {
			return ErrReceiptNotFound
		}
		if receipt.Status != constants.ReceiptStatusFailed {
			return ErrReceiptNotRetryable
		}
		receipt.Status = constants.ReceiptStatusQueued
		receipt.Attempts = 0
		receipt.LastError = nil
		receipt.NextAttemptAt = time.Now()
		if err := repo.Update(receipt); err != nil {
			return err
		}
		updated = receipt
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("receipt_retry_requested", "receipt_id", updated.ID, "card_id", updated.CardID)
	return updated, nil
}

// ReceiptStats summarizes the outbox per status, including statuses
// with no rows.
type ReceiptStats struct {
	Statuses map[string]repository.ReceiptStatusStat `json:"statuses"`
	Total    int64                                   `json:"total"`
}

// Stats aggregates the outbox for the admin dashboard.
func (s *ReceiptAdminService) Stats() (*ReceiptStats, error) {
	rows, err := s.receiptRepo.StatsByStatus()
	if err != nil {
		return nil, err
	}
	stats := &ReceiptStats{Statuses: map[string]repository.ReceiptStatusStat{}}
	for _, status := range []string{
		constants.ReceiptStatusQueued,
		constants.ReceiptStatusSent,
		constants.ReceiptStatusFailed,
	} {
		stats.Statuses[status] = repository.ReceiptStatusStat{Status: status}
	}
	for _, row := range rows {
		stats.Statuses[row.Status] = row
		stats.Total += row.Count
	}
	return stats, nil
}
