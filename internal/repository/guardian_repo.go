package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// GuardianRepository maintains guardian to dependent links.
type GuardianRepository interface {
	Link(ctx context.Context, guardianID, dependentID uint) error
	Unlink(ctx context.Context, guardianID, dependentID uint) error
	IsGuardianOf(ctx context.Context, guardianID, dependentID uint) (bool, error)
	ListDependents(ctx context.Context, guardianID uint) ([]models.User, error)
	ListGuardianIDs(ctx context.Context, dependentID uint) ([]uint, error)
}

type guardianRepository struct {
	db *gorm.DB
}

// NewGuardianRepository constructs the guardian link repository.
func NewGuardianRepository(db *gorm.DB) GuardianRepository {
	return &guardianRepository{db: db}
}

func (r *guardianRepository) Link(ctx context.Context, guardianID, dependentID uint) error {
	link := models.GuardianLink{GuardianID: guardianID, DependentID: dependentID}
	return r.db.WithContext(ctx).Create(&link).Error
}

func (r *guardianRepository) Unlink(ctx context.Context, guardianID, dependentID uint) error {
	result := r.db.WithContext(ctx).
		Where("guardian_id = ? AND dependent_id = ?", guardianID, dependentID).
		Delete(&models.GuardianLink{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *guardianRepository) IsGuardianOf(ctx context.Context, guardianID, dependentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GuardianLink{}).
		Where("guardian_id = ? AND dependent_id = ?", guardianID, dependentID).
		Count(&count).Error
	return count > 0, err
}

func (r *guardianRepository) ListDependents(ctx context.Context, guardianID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Preload("Level").
		Joins("JOIN guardian_links ON guardian_links.dependent_id = users.id").
		Where("guardian_links.guardian_id = ?", guardianID).
		Order("users.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *guardianRepository) ListGuardianIDs(ctx context.Context, dependentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.GuardianLink{}).
		Where("dependent_id = ?", dependentID).
		Order("guardian_id ASC").
		Pluck("guardian_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
