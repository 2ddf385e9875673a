package models

import "time"

// CardEvent is one row of the append-only card ledger. Delta is the
// change applied to the remaining-use counter (-1 deduct, +1 rollback,
// 0 issue/cancel).
type CardEvent struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CardID        string    `gorm:"type:varchar(36);index;not null" json:"card_id"`
	EventType     string    `gorm:"type:varchar(20);index;not null" json:"event_type"`
	Delta         int       `gorm:"not null" json:"delta"`
	StaffUsername string    `gorm:"type:varchar(100);not null" json:"staff_username"`
	ReasonCode    *string   `gorm:"type:varchar(40)" json:"reason_code,omitempty"`
	Note          *string   `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName sets the table name.
func (CardEvent) TableName() string {
	return "card_events"
}
