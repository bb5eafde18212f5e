package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// CurriculumRepository persists levels, programs and units.
type CurriculumRepository interface {
	CreateLevel(ctx context.Context, level *models.Level) error
	ListLevels(ctx context.Context) ([]models.Level, error)
	GetLevel(ctx context.Context, id uint) (models.Level, error)
	CreateProgram(ctx context.Context, program *models.Program) error
	ListPrograms(ctx context.Context, levelID *uint) ([]models.Program, error)
	GetProgram(ctx context.Context, id uint) (models.Program, error)
	CreateUnit(ctx context.Context, unit *models.Unit) error
	ListUnits(ctx context.Context, programID uint) ([]models.Unit, error)
	GetUnit(ctx context.Context, id uint) (models.Unit, error)
}

type curriculumRepository struct {
	db *gorm.DB
}

// NewCurriculumRepository constructs the curriculum repository.
func NewCurriculumRepository(db *gorm.DB) CurriculumRepository {
	return &curriculumRepository{db: db}
}

func (r *curriculumRepository) CreateLevel(ctx context.Context, level *models.Level) error {
	return r.db.WithContext(ctx).Create(level).Error
}

func (r *curriculumRepository) ListLevels(ctx context.Context) ([]models.Level, error) {
	var levels []models.Level
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *curriculumRepository) GetLevel(ctx context.Context, id uint) (models.Level, error) {
	var level models.Level
	if err := r.db.WithContext(ctx).First(&level, id).Error; err != nil {
		return models.Level{}, err
	}
	return level, nil
}

func (r *curriculumRepository) CreateProgram(ctx context.Context, program *models.Program) error {
	return r.db.WithContext(ctx).Create(program).Error
}

func (r *curriculumRepository) ListPrograms(ctx context.Context, levelID *uint) ([]models.Program, error) {
	query := r.db.WithContext(ctx).Preload("Level")
	if levelID != nil {
		query = query.Where("level_id = ?", *levelID)
	}

	var programs []models.Program
	if err := query.Order("title ASC").Find(&programs).Error; err != nil {
		return nil, err
	}
	return programs, nil
}

func (r *curriculumRepository) GetProgram(ctx context.Context, id uint) (models.Program, error) {
	var program models.Program
	if err := r.db.WithContext(ctx).Preload("Level").First(&program, id).Error; err != nil {
		return models.Program{}, err
	}
	return program, nil
}

func (r *curriculumRepository) CreateUnit(ctx context.Context, unit *models.Unit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *curriculumRepository) ListUnits(ctx context.Context, programID uint) ([]models.Unit, error) {
	var units []models.Unit
	if err := r.db.WithContext(ctx).Where("program_id = ?", programID).Order("id ASC").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *curriculumRepository) GetUnit(ctx context.Context, id uint) (models.Unit, error) {
	var unit models.Unit
	if err := r.db.WithContext(ctx).First(&unit, id).Error; err != nil {
		return models.Unit{}, err
	}
	return unit, nil
}
