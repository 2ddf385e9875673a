package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Staff is a reception or admin account identified by username.
type Staff struct {
	ID           string    `gorm:"type:varchar(36);primarykey" json:"id"`
	Username     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(200)" json:"-"`
	Role         string    `gorm:"type:varchar(20);not null" json:"role"` // reception / admin
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName sets the table name.
func (Staff) TableName() string {
	return "staff"
}

// BeforeCreate assigns a UUID when none was supplied.
func (s *Staff) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
