package repository

import (
	"time"

	"github.com/sportfabrik/bonuscard/internal/models"

	"gorm.io/gorm"
)

// CardEventRow is one flattened row of the event report.
type CardEventRow struct {
	Serial        string
	StaffUsername string
	Product       string
	CreatedAt     time.Time
	EventType     string
	Delta         int
	ReasonCode    *string
}

// CardEventRepository is the card event ledger access interface.
type CardEventRepository interface {
	Create(event *models.CardEvent) error
	ListByCardID(cardID string) ([]models.CardEvent, error)
	ListForReport(filter CardEventReportFilter) ([]CardEventRow, error)
	WithTx(tx *gorm.DB) *GormCardEventRepository
}

// GormCardEventRepository is the GORM card event repository.
type GormCardEventRepository struct {
	db *gorm.DB
}

// NewCardEventRepository creates a card event repository.
func NewCardEventRepository(db *gorm.DB) *GormCardEventRepository {
	return &GormCardEventRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormCardEventRepository) WithTx(tx *gorm.DB) *GormCardEventRepository {
	if tx == nil {
		return r
	}
	return &GormCardEventRepository{db: tx}
}

// Create appends an event to the ledger.
func (r *GormCardEventRepository) Create(event *models.CardEvent) error {
	return r.db.Create(event).Error
}

// ListByCardID returns a card's events oldest first.
func (r *GormCardEventRepository) ListByCardID(cardID string) ([]models.CardEvent, error) {
	var events []models.CardEvent
	if err := r.db.Where("card_id = ?", cardID).Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListForReport returns event rows joined with card data for the CSV
// export, oldest first within the window.
func (r *GormCardEventRepository) ListForReport(filter CardEventReportFilter) ([]CardEventRow, error) {
	var rows []CardEventRow
	err := r.db.Model(&models.CardEvent{}).
		Select("cards.serial AS serial, card_events.staff_username AS staff_username, cards.product AS product, card_events.created_at AS created_at, card_events.event_type AS event_type, card_events.delta AS delta, card_events.reason_code AS reason_code").
		Joins("JOIN cards ON cards.id = card_events.card_id").
		Where("card_events.created_at >= ? AND card_events.created_at <= ?", filter.From, filter.To).
		Order("card_events.created_at asc, card_events.id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
