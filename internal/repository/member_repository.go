package repository

import (
	"errors"
	"strings"

	"github.com/sportfabrik/bonuscard/internal/models"

	"gorm.io/gorm"
)

// MemberRepository is the member data access interface.
type MemberRepository interface {
	GetByID(id string) (*models.Member, error)
	GetByIDs(ids []string) ([]models.Member, error)
	Create(member *models.Member) error
	WithTx(tx *gorm.DB) *GormMemberRepository
}

// GormMemberRepository is the GORM member repository.
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a member repository.
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormMemberRepository) WithTx(tx *gorm.DB) *GormMemberRepository {
	if tx == nil {
		return r
	}
	return &GormMemberRepository{db: tx}
}

// GetByID fetches a member by id.
func (r *GormMemberRepository) GetByID(id string) (*models.Member, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Where("id = ?", id).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDs fetches members in bulk.
func (r *GormMemberRepository) GetByIDs(ids []string) ([]models.Member, error) {
	if len(ids) == 0 {
		return []models.Member{}, nil
	}
	var members []models.Member
	if err := r.db.Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// Create inserts a member.
func (r *GormMemberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}
