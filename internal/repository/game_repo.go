package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// GameRepository persists game sections, games and learner scores.
type GameRepository interface {
	CreateSection(ctx context.Context, section *models.GameSection) error
	UpdateSection(ctx context.Context, section *models.GameSection) error
	GetSection(ctx context.Context, id uint) (models.GameSection, error)
	ListSections(ctx context.Context) ([]models.GameSection, error)
	DeleteSection(ctx context.Context, id uint) ([]string, error)

	CreateGame(ctx context.Context, game *models.Game) error
	UpdateGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, id uint) (models.Game, error)
	ListGames(ctx context.Context, sectionID *uint) ([]models.Game, error)
	DeleteGame(ctx context.Context, id uint) ([]string, error)

	CreateScore(ctx context.Context, score *models.GameScore) error
	GetScore(ctx context.Context, id uint) (models.GameScore, error)
	ListScoresByOwner(ctx context.Context, ownerID uint) ([]models.GameScore, error)
	ListScoresByLearner(ctx context.Context, learnerID uint) ([]models.GameScore, error)
	MarkReviewed(ctx context.Context, id uint) (bool, error)
}

type gameRepository struct {
	db *gorm.DB
}

// NewGameRepository constructs the game repository.
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) CreateSection(ctx context.Context, section *models.GameSection) error {
	return r.db.WithContext(ctx).Create(section).Error
}

func (r *gameRepository) UpdateSection(ctx context.Context, section *models.GameSection) error {
	return r.db.WithContext(ctx).Save(section).Error
}

func (r *gameRepository) GetSection(ctx context.Context, id uint) (models.GameSection, error) {
	var section models.GameSection
	if err := r.db.WithContext(ctx).First(&section, id).Error; err != nil {
		return models.GameSection{}, err
	}
	return section, nil
}

func (r *gameRepository) ListSections(ctx context.Context) ([]models.GameSection, error) {
	var sections []models.GameSection
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&sections).Error; err != nil {
		return nil, err
	}
	return sections, nil
}

// DeleteSection removes a section with its games and their scores and
// returns every artifact ref that became orphaned.
func (r *gameRepository) DeleteSection(ctx context.Context, id uint) ([]string, error) {
	var refs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var section models.GameSection
		if err := tx.First(&section, id).Error; err != nil {
			return err
		}

		var games []models.Game
		if err := tx.Where("section_id = ?", id).Find(&games).Error; err != nil {
			return err
		}

		for _, game := range games {
			gameRefs, err := deleteGameTx(tx, game)
			if err != nil {
				return err
			}
			refs = append(refs, gameRefs...)
		}

		if err := tx.Delete(&section).Error; err != nil {
			return err
		}
		refs = appendRef(refs, section.ImageRef)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *gameRepository) CreateGame(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Omit("Section").Create(game).Error
}

func (r *gameRepository) UpdateGame(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Omit("Section").Save(game).Error
}

func (r *gameRepository) GetGame(ctx context.Context, id uint) (models.Game, error) {
	var game models.Game
	if err := r.db.WithContext(ctx).Preload("Section").First(&game, id).Error; err != nil {
		return models.Game{}, err
	}
	return game, nil
}

func (r *gameRepository) ListGames(ctx context.Context, sectionID *uint) ([]models.Game, error) {
	query := r.db.WithContext(ctx).Preload("Section")
	if sectionID != nil {
		query = query.Where("section_id = ?", *sectionID)
	}

	var games []models.Game
	if err := query.Order("name ASC").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gameRepository) DeleteGame(ctx context.Context, id uint) ([]string, error) {
	var refs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := tx.First(&game, id).Error; err != nil {
			return err
		}

		var err error
		refs, err = deleteGameTx(tx, game)
		return err
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *gameRepository) CreateScore(ctx context.Context, score *models.GameScore) error {
	return r.db.WithContext(ctx).Omit("Game", "Learner").Create(score).Error
}

func (r *gameRepository) GetScore(ctx context.Context, id uint) (models.GameScore, error) {
	var score models.GameScore
	if err := r.db.WithContext(ctx).Preload("Game").Preload("Learner").First(&score, id).Error; err != nil {
		return models.GameScore{}, err
	}
	return score, nil
}

func (r *gameRepository) ListScoresByOwner(ctx context.Context, ownerID uint) ([]models.GameScore, error) {
	var scores []models.GameScore
	err := r.db.WithContext(ctx).
		Preload("Game").
		Preload("Learner").
		Joins("JOIN games ON games.id = game_scores.game_id").
		Where("games.created_by = ?", ownerID).
		Order("game_scores.submitted_at DESC").
		Order("game_scores.id DESC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *gameRepository) ListScoresByLearner(ctx context.Context, learnerID uint) ([]models.GameScore, error) {
	var scores []models.GameScore
	err := r.db.WithContext(ctx).
		Preload("Game").
		Where("learner_id = ?", learnerID).
		Order("submitted_at DESC").
		Order("id DESC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// MarkReviewed flips the reviewed flag once. It reports false when the score
// had already been reviewed.
func (r *gameRepository) MarkReviewed(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.GameScore{}).
		Where("id = ? AND reviewed = ?", id, false).
		Update("reviewed", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func deleteGameTx(tx *gorm.DB, game models.Game) ([]string, error) {
	var scores []models.GameScore
	if err := tx.Where("game_id = ?", game.ID).Find(&scores).Error; err != nil {
		return nil, err
	}

	if err := tx.Where("game_id = ?", game.ID).Delete(&models.GameScore{}).Error; err != nil {
		return nil, err
	}

	if err := tx.Delete(&models.Game{}, game.ID).Error; err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(scores)+1)
	for _, score := range scores {
		refs = appendRef(refs, score.ScreenshotRef)
	}
	return appendRef(refs, game.ImageRef), nil
}

func appendRef(refs []string, ref string) []string {
	if ref == "" {
		return refs
	}
	return append(refs, ref)
}
