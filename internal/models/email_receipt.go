package models

import "time"

// EmailReceipt is one outbox row. It is inserted Queued in the same
// transaction as the card mutation it confirms and carries a
// denormalized render snapshot so the delivery worker never has to
// join back onto live card data.
type EmailReceipt struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	CardID  string `gorm:"type:varchar(36);index;not null" json:"card_id"`
	EventID uint   `gorm:"index;not null" json:"event_id"`

	Status        string     `gorm:"type:varchar(20);index:idx_receipt_status_created,priority:1;not null" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time  `gorm:"index;not null" json:"next_attempt_at"`
	SentAt        *time.Time `json:"sent_at"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	MessageID     *string    `gorm:"type:varchar(255)" json:"message_id"`

	// Render snapshot, frozen at enqueue time.
	ToEmail        string     `gorm:"type:varchar(255);not null" json:"to_email"`
	MemberName     string     `gorm:"type:varchar(200);not null" json:"member_name"`
	CardSerial     string     `gorm:"type:varchar(20);not null" json:"card_serial"`
	ProductLabel   string     `gorm:"type:varchar(60);not null" json:"product_label"`
	EventType      string     `gorm:"type:varchar(20);not null" json:"event_type"`
	EventTime      time.Time  `gorm:"not null" json:"event_time"`
	RemainingUses  *int       `json:"remaining_uses"`
	CardExpiresAt  *time.Time `json:"card_expires_at"`
	RollbackReason *string    `gorm:"type:varchar(40)" json:"rollback_reason,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_receipt_status_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name.
func (EmailReceipt) TableName() string {
	return "email_receipts"
}
