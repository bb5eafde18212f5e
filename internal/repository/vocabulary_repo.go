package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// VocabularyRepository persists vocabulary words and their categories.
type VocabularyRepository interface {
	CreateCategory(ctx context.Context, category *models.VocabularyCategory) error
	ListCategories(ctx context.Context) ([]models.VocabularyCategory, error)
	GetCategory(ctx context.Context, id uint) (models.VocabularyCategory, error)
	Create(ctx context.Context, word *models.Vocabulary) error
	Update(ctx context.Context, word *models.Vocabulary) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (models.Vocabulary, error)
	List(ctx context.Context, categoryID *uint) ([]models.Vocabulary, error)
}

type vocabularyRepository struct {
	db *gorm.DB
}

// NewVocabularyRepository constructs the vocabulary repository.
func NewVocabularyRepository(db *gorm.DB) VocabularyRepository {
	return &vocabularyRepository{db: db}
}

func (r *vocabularyRepository) CreateCategory(ctx context.Context, category *models.VocabularyCategory) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *vocabularyRepository) ListCategories(ctx context.Context) ([]models.VocabularyCategory, error) {
	var categories []models.VocabularyCategory
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *vocabularyRepository) GetCategory(ctx context.Context, id uint) (models.VocabularyCategory, error) {
	var category models.VocabularyCategory
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return models.VocabularyCategory{}, err
	}
	return category, nil
}

func (r *vocabularyRepository) Create(ctx context.Context, word *models.Vocabulary) error {
	return r.db.WithContext(ctx).Omit("Category").Create(word).Error
}

func (r *vocabularyRepository) Update(ctx context.Context, word *models.Vocabulary) error {
	return r.db.WithContext(ctx).Omit("Category").Save(word).Error
}

func (r *vocabularyRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Vocabulary{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *vocabularyRepository) GetByID(ctx context.Context, id uint) (models.Vocabulary, error) {
	var word models.Vocabulary
	if err := r.db.WithContext(ctx).Preload("Category").First(&word, id).Error; err != nil {
		return models.Vocabulary{}, err
	}
	return word, nil
}

func (r *vocabularyRepository) List(ctx context.Context, categoryID *uint) ([]models.Vocabulary, error) {
	query := r.db.WithContext(ctx).Preload("Category")
	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}

	var words []models.Vocabulary
	if err := query.Order("word ASC").Find(&words).Error; err != nil {
		return nil, err
	}
	return words, nil
}
