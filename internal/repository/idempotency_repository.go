package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/sportfabrik/bonuscard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdempotencyRepository is the idempotency record access interface.
type IdempotencyRepository interface {
	GetValid(key, cardID, action string, now time.Time) (*models.IdempotencyRecord, error)
	Create(record *models.IdempotencyRecord) error
	DeleteExpired(now time.Time) (int64, error)
	WithTx(tx *gorm.DB) *GormIdempotencyRepository
}

// GormIdempotencyRepository is the GORM idempotency repository.
type GormIdempotencyRepository struct {
	db *gorm.DB
}

// NewIdempotencyRepository creates an idempotency repository.
func NewIdempotencyRepository(db *gorm.DB) *GormIdempotencyRepository {
	return &GormIdempotencyRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormIdempotencyRepository) WithTx(tx *gorm.DB) *GormIdempotencyRepository {
	if tx == nil {
		return r
	}
	return &GormIdempotencyRepository{db: tx}
}

// GetValid fetches an unexpired record for (key, card, action).
func (r *GormIdempotencyRepository) GetValid(key, cardID, action string, now time.Time) (*models.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var record models.IdempotencyRecord
	if err := r.db.
		Where("key = ? AND card_id = ? AND action = ? AND expires_at > ?", key, cardID, action, now).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts a record. A concurrent duplicate wins silently, the
// first stored response is the one replays must see.
func (r *GormIdempotencyRepository) Create(record *models.IdempotencyRecord) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

// DeleteExpired purges records past their TTL.
func (r *GormIdempotencyRepository) DeleteExpired(now time.Time) (int64, error) {
	result := r.db.Where("expires_at <= ?", now).Delete(&models.IdempotencyRecord{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
