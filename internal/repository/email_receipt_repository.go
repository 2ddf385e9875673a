package repository

import (
	"errors"
	"time"

	"github.com/sportfabrik/bonuscard/internal/constants"
	"github.com/sportfabrik/bonuscard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceiptStatusStat aggregates receipts for one status.
type ReceiptStatusStat struct {
	Status string
	Count  int64
	Oldest *time.Time
	Newest *time.Time
}

// EmailReceiptRepository is the outbox access interface.
type EmailReceiptRepository interface {
	Create(receipt *models.EmailReceipt) error
	GetByID(id uint) (*models.EmailReceipt, error)
	Update(receipt *models.EmailReceipt) error
	ClaimDueBatch(limit int, now time.Time) ([]models.EmailReceipt, error)
	Lease(ids []uint, until time.Time) error
	List(filter EmailReceiptListFilter) ([]models.EmailReceipt, int64, error)
	StatsByStatus() ([]ReceiptStatusStat, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormEmailReceiptRepository
}

// GormEmailReceiptRepository is the GORM outbox repository.
type GormEmailReceiptRepository struct {
	db *gorm.DB
}

// NewEmailReceiptRepository creates an outbox repository.
func NewEmailReceiptRepository(db *gorm.DB) *GormEmailReceiptRepository {
	return &GormEmailReceiptRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormEmailReceiptRepository) WithTx(tx *gorm.DB) *GormEmailReceiptRepository {
	if tx == nil {
		return r
	}
	return &GormEmailReceiptRepository{db: tx}
}

// Transaction runs fn inside a database transaction.
func (r *GormEmailReceiptRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// Create inserts a receipt row.
func (r *GormEmailReceiptRepository) Create(receipt *models.EmailReceipt) error {
	return r.db.Create(receipt).Error
}

// GetByID fetches a receipt by id.
func (r *GormEmailReceiptRepository) GetByID(id uint) (*models.EmailReceipt, error) {
	if id == 0 {
		return nil, nil
	}
	var receipt models.EmailReceipt
	if err := r.db.First(&receipt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &receipt, nil
}

// Update persists a receipt.
func (r *GormEmailReceiptRepository) Update(receipt *models.EmailReceipt) error {
	return r.db.Save(receipt).Error
}

// ClaimDueBatch fetches up to limit queued receipts whose next attempt
// is due, oldest first. On postgres the rows are locked with SKIP
// LOCKED so competing workers never pick the same receipt. Call inside
// a transaction.
func (r *GormEmailReceiptRepository) ClaimDueBatch(limit int, now time.Time) ([]models.EmailReceipt, error) {
	if limit <= 0 {
		return []models.EmailReceipt{}, nil
	}
	query := r.db.
		Where("status = ? AND next_attempt_at <= ?", constants.ReceiptStatusQueued, now).
		Order("created_at asc").
		Limit(limit)
	if supportsSkipLocked(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var receipts []models.EmailReceipt
	if err := query.Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

// Lease pushes the next attempt of the given receipts into the
// future. Claimed rows stay invisible to other pollers until the
// lease runs out, so a crashed worker loses at most one lease window.
func (r *GormEmailReceiptRepository) Lease(ids []uint, until time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.EmailReceipt{}).
		Where("id IN ?", ids).
		Update("next_attempt_at", until).Error
}

// List pages through receipts for the admin monitor, newest first.
func (r *GormEmailReceiptRepository) List(filter EmailReceiptListFilter) ([]models.EmailReceipt, int64, error) {
	query := r.db.Model(&models.EmailReceipt{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CardID != "" {
		query = query.Where("card_id = ?", filter.CardID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var receipts []models.EmailReceipt
	if err := query.Order("id desc").Find(&receipts).Error; err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}

// StatsByStatus aggregates counts and boundary timestamps per status.
// The boundaries come from ordered single-row reads rather than
// MIN/MAX aggregates; the sqlite driver returns aggregated timestamps
// as raw strings it cannot scan back into time.Time.
func (r *GormEmailReceiptRepository) StatsByStatus() ([]ReceiptStatusStat, error) {
	var counts []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&models.EmailReceipt{}).
		Select("status AS status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	stats := make([]ReceiptStatusStat, 0, len(counts))
	for _, row := range counts {
		stat := ReceiptStatusStat{Status: row.Status, Count: row.Count}
		oldest, err := r.boundaryCreatedAt(row.Status, "asc")
		if err != nil {
			return nil, err
		}
		newest, err := r.boundaryCreatedAt(row.Status, "desc")
		if err != nil {
			return nil, err
		}
		stat.Oldest = oldest
		stat.Newest = newest
		stats = append(stats, stat)
	}
	return stats, nil
}

func (r *GormEmailReceiptRepository) boundaryCreatedAt(status, direction string) (*time.Time, error) {
	var bounds []time.Time
	err := r.db.Model(&models.EmailReceipt{}).
		Where("status = ?", status).
		Order("created_at " + direction).
		Limit(1).
		Pluck("created_at", &bounds).Error
	if err != nil {
		return nil, err
	}
	if len(bounds) == 0 {
		return nil, nil
	}
	return &bounds[0], nil
}
