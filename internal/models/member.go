package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Member is a gym member who can hold bonus cards.
type Member struct {
	ID        string    `gorm:"type:varchar(36);primarykey" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);index;not null" json:"email"`
	// No column default; GORM would drop a false zero value from the
	// insert otherwise.
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name.
func (Member) TableName() string {
	return "members"
}

// BeforeCreate assigns a UUID when none was supplied.
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
