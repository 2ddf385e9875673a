package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Card is a member bonus card. RemainingUses is nil for unlimited
// products and 0..11 for the prepaid bonus product.
type Card struct {
	ID            string     `gorm:"type:varchar(36);primarykey" json:"id"`
	Serial        string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"serial"`
	MemberID      string     `gorm:"type:varchar(36);index;not null" json:"member_id"`
	Product       string     `gorm:"type:varchar(40);not null" json:"product"`
	State         string     `gorm:"type:varchar(20);index;not null" json:"state"`
	RemainingUses *int       `json:"remaining_uses"`
	IssuedAt      time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt     *time.Time `gorm:"index" json:"expires_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Member *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

// TableName sets the table name.
func (Card) TableName() string {
	return "cards"
}

// BeforeCreate assigns a UUID when none was supplied.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
