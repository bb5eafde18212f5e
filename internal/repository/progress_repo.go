package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// LessonProgressRepository persists per-learner lesson progress.
type LessonProgressRepository interface {
	Get(ctx context.Context, studentID, lessonID uint) (models.LessonProgress, error)
	Upsert(ctx context.Context, progress *models.LessonProgress) error
	ListByStudent(ctx context.Context, studentID uint) ([]models.LessonProgress, error)
	DeleteByStudent(ctx context.Context, studentID uint) (int64, error)
}

type lessonProgressRepository struct {
	db *gorm.DB
}

// NewLessonProgressRepository constructs the progress repository.
func NewLessonProgressRepository(db *gorm.DB) LessonProgressRepository {
	return &lessonProgressRepository{db: db}
}

func (r *lessonProgressRepository) Get(ctx context.Context, studentID, lessonID uint) (models.LessonProgress, error) {
	var progress models.LessonProgress
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		First(&progress).Error
	if err != nil {
		return models.LessonProgress{}, err
	}
	return progress, nil
}

func (r *lessonProgressRepository) Upsert(ctx context.Context, progress *models.LessonProgress) error {
	progress.ID = 0
	return r.db.WithContext(ctx).Omit("Lesson").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "current_page", "completed_at", "updated_at"}),
	}).Create(progress).Error
}

// ListByStudent returns progress rows with their lesson. Rows whose lesson is
// gone keep a nil Lesson.
func (r *lessonProgressRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.LessonProgress, error) {
	var rows []models.LessonProgress
	err := r.db.WithContext(ctx).
		Preload("Lesson").
		Where("student_id = ?", studentID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lessonProgressRepository) DeleteByStudent(ctx context.Context, studentID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("student_id = ?", studentID).Delete(&models.LessonProgress{})
	return result.RowsAffected, result.Error
}
