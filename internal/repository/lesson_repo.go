package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// LessonFilter narrows lesson listings.
type LessonFilter struct {
	TeacherID *uint
	ProgramID *uint
	LevelID   *uint
	UnitID    *uint
}

// LessonRepository persists lessons.
type LessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (models.Lesson, error)
	List(ctx context.Context, filter LessonFilter) ([]models.Lesson, error)
}

type lessonRepository struct {
	db *gorm.DB
}

// NewLessonRepository constructs the lesson repository.
func NewLessonRepository(db *gorm.DB) LessonRepository {
	return &lessonRepository{db: db}
}

func (r *lessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	return r.db.WithContext(ctx).Create(lesson).Error
}

func (r *lessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	return r.db.WithContext(ctx).Omit("Program").Save(lesson).Error
}

// Delete removes the lesson together with the progress rows tracking it.
func (r *lessonRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lesson_id = ?", id).Delete(&models.LessonProgress{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Lesson{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *lessonRepository) GetByID(ctx context.Context, id uint) (models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).Preload("Program").First(&lesson, id).Error; err != nil {
		return models.Lesson{}, err
	}
	return lesson, nil
}

func (r *lessonRepository) List(ctx context.Context, filter LessonFilter) ([]models.Lesson, error) {
	query := r.db.WithContext(ctx).Model(&models.Lesson{}).Preload("Program")

	if filter.TeacherID != nil {
		query = query.Where("lessons.teacher_id = ?", *filter.TeacherID)
	}
	if filter.ProgramID != nil {
		query = query.Where("lessons.program_id = ?", *filter.ProgramID)
	}
	if filter.UnitID != nil {
		query = query.Where("lessons.unit_id = ?", *filter.UnitID)
	}
	if filter.LevelID != nil {
		query = query.Joins("JOIN programs ON programs.id = lessons.program_id").
			Where("programs.level_id = ?", *filter.LevelID)
	}

	var lessons []models.Lesson
	if err := query.Order("lessons.created_at DESC").Order("lessons.id DESC").Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}
