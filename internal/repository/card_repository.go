package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/sportfabrik/bonuscard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardRepository is the card data access interface.
type CardRepository interface {
	GetByID(id string) (*models.Card, error)
	GetByIDForUpdate(id string) (*models.Card, error)
	GetBySerial(serial string) (*models.Card, error)
	Create(card *models.Card) error
	Update(card *models.Card) error
	NextSerialValue(year int) (int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormCardRepository
}

// GormCardRepository is the GORM card repository.
type GormCardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a card repository.
func NewCardRepository(db *gorm.DB) *GormCardRepository {
	return &GormCardRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormCardRepository) WithTx(tx *gorm.DB) *GormCardRepository {
	if tx == nil {
		return r
	}
	return &GormCardRepository{db: tx}
}

// Transaction runs fn inside a database transaction.
func (r *GormCardRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// GetByID fetches a card by id.
func (r *GormCardRepository) GetByID(id string) (*models.Card, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var card models.Card
	if err := r.db.Where("id = ?", id).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByIDForUpdate fetches a card by id under a row lock.
func (r *GormCardRepository) GetByIDForUpdate(id string) (*models.Card, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var card models.Card
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetBySerial fetches a card by its printed serial.
func (r *GormCardRepository) GetBySerial(serial string) (*models.Card, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, nil
	}
	var card models.Card
	if err := r.db.Where("serial = ?", serial).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// Create inserts a card.
func (r *GormCardRepository) Create(card *models.Card) error {
	return r.db.Create(card).Error
}

// Update persists a card.
func (r *GormCardRepository) Update(card *models.Card) error {
	return r.db.Save(card).Error
}

// NextSerialValue reserves the next serial sequence number for the
// given year. The counter row is locked so concurrent issuers never
// see the same value. Call inside the issuing transaction.
func (r *GormCardRepository) NextSerialValue(year int) (int64, error) {
	var counter models.SerialCounter
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("year = ?", year).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = models.SerialCounter{Year: year, NextValue: 1, UpdatedAt: time.Now()}
		// A concurrent issuer may create the row first; fall back to
		// the locked read in that case.
		if createErr := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; createErr != nil {
			return 0, createErr
		}
		err = r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("year = ?", year).
			First(&counter).Error
	}
	if err != nil {
		return 0, err
	}

	value := counter.NextValue
	if err := r.db.Model(&models.SerialCounter{}).
		Where("year = ?", year).
		Updates(map[string]interface{}{
			"next_value": gorm.Expr("next_value + 1"),
			"updated_at": time.Now(),
		}).Error; err != nil {
		return 0, err
	}
	return value, nil
}
