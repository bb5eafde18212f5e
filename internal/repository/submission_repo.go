package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	ItemID    *uint
	LearnerID *uint
	TeacherID *uint
	Kind      string
	Status    string
}

// ErrSubmissionLocked is returned when a learner-side write finds the row
// already corrected, or gone.
var ErrSubmissionLocked = errors.New("submission is corrected or no longer exists")

var (
	workColumns   = []string{"artifact_ref", "artifact_url", "status", "submitted_at", "feedback", "correction_ref", "correction_url", "score", "max_score", "corrected_at", "updated_at"}
	reviewColumns = []string{"status", "feedback", "correction_ref", "correction_url", "score", "max_score", "corrected_at", "updated_at"}
)

// SubmissionRepository persists learner submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	// UpdateWork rewrites the learner's work unless the row is corrected.
	UpdateWork(ctx context.Context, submission *models.Submission) error
	// UpdateReview writes the instructor's review columns only.
	UpdateReview(ctx context.Context, submission *models.Submission) error
	// DeleteUncorrected removes the row unless it is corrected.
	DeleteUncorrected(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	FindByLearnerAndItem(ctx context.Context, learnerID, itemID uint) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs the submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Item", "Learner").Create(submission).Error
}

func (r *submissionRepository) UpdateWork(ctx context.Context, submission *models.Submission) error {
	result := r.db.WithContext(ctx).Model(submission).
		Where("status <> ?", models.SubmissionStatusCorrected).
		Select(workColumns).
		Updates(submission)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubmissionLocked
	}
	return nil
}

func (r *submissionRepository) UpdateReview(ctx context.Context, submission *models.Submission) error {
	result := r.db.WithContext(ctx).Model(submission).
		Select(reviewColumns).
		Updates(submission)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *submissionRepository) DeleteUncorrected(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, models.SubmissionStatusCorrected).
		Delete(&models.Submission{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubmissionLocked
	}
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Item").
		Preload("Item.Program").
		Preload("Learner").
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) FindByLearnerAndItem(ctx context.Context, learnerID, itemID uint) (models.Submission, error) {
	var submission models.Submission
	result := r.db.WithContext(ctx).
		Where("learner_id = ? AND item_id = ?", learnerID, itemID).
		Limit(1).
		Find(&submission)
	if result.Error != nil {
		return models.Submission{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Item").
		Preload("Learner")

	if filter.ItemID != nil {
		query = query.Where("submissions.item_id = ?", *filter.ItemID)
	}
	if filter.LearnerID != nil {
		query = query.Where("submissions.learner_id = ?", *filter.LearnerID)
	}
	if filter.Status != "" {
		query = query.Where("submissions.status = ?", filter.Status)
	}
	if filter.TeacherID != nil || filter.Kind != "" {
		query = query.Joins("JOIN assignable_items ON assignable_items.id = submissions.item_id")
		if filter.TeacherID != nil {
			query = query.Where("assignable_items.teacher_id = ?", *filter.TeacherID)
		}
		if filter.Kind != "" {
			query = query.Where("assignable_items.kind = ?", filter.Kind)
		}
	}

	var submissions []models.Submission
	if err := query.Order("submissions.submitted_at DESC").Order("submissions.id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
