package models

import "time"

// IdempotencyRecord caches the outcome of a deduct or rollback so a
// retried request returns the original result instead of mutating the
// card twice. Rows expire two minutes after creation and are purged by
// a background task.
type IdempotencyRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Key       string    `gorm:"type:varchar(200);uniqueIndex:idx_idem_key_card_action;not null" json:"key"`
	CardID    string    `gorm:"type:varchar(36);uniqueIndex:idx_idem_key_card_action;not null" json:"card_id"`
	Action    string    `gorm:"type:varchar(20);uniqueIndex:idx_idem_key_card_action;not null" json:"action"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

// TableName sets the table name.
func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}
