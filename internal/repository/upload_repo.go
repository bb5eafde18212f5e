package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// UploadRepository keeps the ledger of stored artifacts.
type UploadRepository interface {
	Create(ctx context.Context, record *models.UploadRecord) error
	ListByUser(ctx context.Context, userID uint, purpose string, limit int) ([]models.UploadRecord, error)
	DeleteByRef(ctx context.Context, ref string) error
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository constructs a repository for upload records.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, record *models.UploadRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *uploadRepository) ListByUser(ctx context.Context, userID uint, purpose string, limit int) ([]models.UploadRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if purpose != "" {
		query = query.Where("purpose = ?", purpose)
	}

	var records []models.UploadRecord
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByRef drops the ledger row of a discarded artifact. Unknown refs are ignored.
func (r *uploadRepository) DeleteByRef(ctx context.Context, ref string) error {
	return r.db.WithContext(ctx).Where("ref = ?", ref).Delete(&models.UploadRecord{}).Error
}
