package repository

import (
	"errors"
	"strings"

	"github.com/sportfabrik/bonuscard/internal/models"

	"gorm.io/gorm"
)

// StaffRepository is the staff data access interface.
type StaffRepository interface {
	GetActiveByUsername(username string) (*models.Staff, error)
	Create(staff *models.Staff) error
	WithTx(tx *gorm.DB) *GormStaffRepository
}

// GormStaffRepository is the GORM staff repository.
type GormStaffRepository struct {
	db *gorm.DB
}

// NewStaffRepository creates a staff repository.
func NewStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormStaffRepository) WithTx(tx *gorm.DB) *GormStaffRepository {
	if tx == nil {
		return r
	}
	return &GormStaffRepository{db: tx}
}

// GetActiveByUsername fetches an active staff account by username.
func (r *GormStaffRepository) GetActiveByUsername(username string) (*models.Staff, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	var staff models.Staff
	if err := r.db.Where("username = ? AND is_active = ?", username, true).First(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &staff, nil
}

// Create inserts a staff account.
func (r *GormStaffRepository) Create(staff *models.Staff) error {
	return r.db.Create(staff).Error
}
