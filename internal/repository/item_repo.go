package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// ItemFilter narrows assignable item listings.
type ItemFilter struct {
	Kind      string
	TeacherID *uint
	ProgramID *uint
	LevelID   *uint
	LessonID  *uint
}

// ItemRepository persists tests and quizzes.
type ItemRepository interface {
	Create(ctx context.Context, item *models.AssignableItem) error
	Update(ctx context.Context, item *models.AssignableItem) error
	GetByID(ctx context.Context, id uint) (models.AssignableItem, error)
	List(ctx context.Context, filter ItemFilter) ([]models.AssignableItem, error)
	DeleteCascade(ctx context.Context, id uint) ([]models.Submission, error)
}

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository constructs the assignable item repository.
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *models.AssignableItem) error {
	return r.db.WithContext(ctx).Omit("Program").Create(item).Error
}

func (r *itemRepository) Update(ctx context.Context, item *models.AssignableItem) error {
	return r.db.WithContext(ctx).Omit("Program").Save(item).Error
}

func (r *itemRepository) GetByID(ctx context.Context, id uint) (models.AssignableItem, error) {
	var item models.AssignableItem
	if err := r.db.WithContext(ctx).Preload("Program").First(&item, id).Error; err != nil {
		return models.AssignableItem{}, err
	}
	return item, nil
}

func (r *itemRepository) List(ctx context.Context, filter ItemFilter) ([]models.AssignableItem, error) {
	query := r.db.WithContext(ctx).Model(&models.AssignableItem{}).Preload("Program")

	if filter.Kind != "" {
		query = query.Where("assignable_items.kind = ?", filter.Kind)
	}
	if filter.TeacherID != nil {
		query = query.Where("assignable_items.teacher_id = ?", *filter.TeacherID)
	}
	if filter.ProgramID != nil {
		query = query.Where("assignable_items.program_id = ?", *filter.ProgramID)
	}
	if filter.LessonID != nil {
		query = query.Where("assignable_items.lesson_id = ?", *filter.LessonID)
	}
	if filter.LevelID != nil {
		query = query.Joins("JOIN programs ON programs.id = assignable_items.program_id").
			Where("programs.level_id = ?", *filter.LevelID)
	}

	var items []models.AssignableItem
	if err := query.Order("assignable_items.created_at DESC").Order("assignable_items.id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteCascade removes the item and every submission to it in one
// transaction. The removed submissions are returned so their artifacts can be
// discarded afterwards.
func (r *itemRepository) DeleteCascade(ctx context.Context, id uint) ([]models.Submission, error) {
	var removed []models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.AssignableItem
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}

		if err := tx.Where("item_id = ?", id).Find(&removed).Error; err != nil {
			return err
		}

		if err := tx.Where("item_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}

		return tx.Delete(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
