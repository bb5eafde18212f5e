package service

import (
	"context"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

var (
	// ErrGameImageRequired indicates a game was created without its image.
	ErrGameImageRequired = apperror.Validation("game image is required")
	// ErrScoreAlreadyReviewed indicates the score was reviewed before.
	ErrScoreAlreadyReviewed = apperror.InvalidState("score has already been reviewed")
)

// GameService manages game sections, games and learner score screenshots.
type GameService interface {
	CreateSection(ctx context.Context, principal identity.Principal, req dto.GameSectionRequest, image *multipart.FileHeader) (dto.GameSectionResponse, error)
	UpdateSection(ctx context.Context, principal identity.Principal, id uint, req dto.GameSectionRequest, image *multipart.FileHeader) (dto.GameSectionResponse, error)
	DeleteSection(ctx context.Context, principal identity.Principal, id uint) error
	ListSections(ctx context.Context, principal identity.Principal) ([]dto.GameSectionResponse, error)
	CreateGame(ctx context.Context, principal identity.Principal, req dto.GameRequest, image *multipart.FileHeader) (dto.GameResponse, error)
	UpdateGame(ctx context.Context, principal identity.Principal, id uint, req dto.GameRequest, image *multipart.FileHeader) (dto.GameResponse, error)
	DeleteGame(ctx context.Context, principal identity.Principal, id uint) error
	ListGames(ctx context.Context, principal identity.Principal, sectionID uint) ([]dto.GameResponse, error)
	SubmitScore(ctx context.Context, principal identity.Principal, gameID uint, screenshot *multipart.FileHeader) (dto.GameScoreResponse, error)
	ListMyScores(ctx context.Context, principal identity.Principal) ([]dto.GameScoreResponse, error)
	ListScores(ctx context.Context, principal identity.Principal) ([]dto.GameScoreResponse, error)
	ReviewScore(ctx context.Context, principal identity.Principal, id uint) (dto.GameScoreResponse, error)
}

type gameService struct {
	repo      repository.GameRepository
	artifacts ArtifactStore
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGameService constructs the game service.
func NewGameService(repo repository.GameRepository, artifacts ArtifactStore, validate *validator.Validate, logger zerolog.Logger) GameService {
	return &gameService{
		repo:      repo,
		artifacts: artifacts,
		validator: validate,
		logger:    logger.With().Str("component", "game_service").Logger(),
		now:       time.Now,
	}
}

func (s *gameService) CreateSection(ctx context.Context, principal identity.Principal, req dto.GameSectionRequest, image *multipart.FileHeader) (dto.GameSectionResponse, error) {
	teacher, err := authorize(principal, identity.CapManageGames)
	if err != nil {
		return dto.GameSectionResponse{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return dto.GameSectionResponse{}, err
	}

	section := models.GameSection{Name: req.Name, CreatedBy: teacher.UserID}
	if image != nil {
		artifact, err := s.artifacts.Store(ctx, image, PolicyGameImage, uintPtr(teacher.UserID))
		if err != nil {
			return dto.GameSectionResponse{}, err
		}
		section.ImageRef = artifact.Ref
		section.ImageURL = artifact.URL
	}

	if err := s.repo.CreateSection(ctx, &section); err != nil {
		discardArtifact(ctx, s.artifacts, s.logger, section.ImageRef)
		return dto.GameSectionResponse{}, err
	}
	return dto.NewGameSectionResponse(section), nil
}

func (s *gameService) UpdateSection(ctx context.Context, principal identity.Principal, id uint, req dto.GameSectionRequest, image *multipart.FileHeader) (dto.GameSectionResponse, error) {
	teacher, err := authorize(principal, identity.CapManageGames)
	if err != nil {
		return dto.GameSectionResponse{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return dto.GameSectionResponse{}, err
	}

	section, err := s.ownedSection(ctx, teacher.UserID, id)
	if err != nil {
		return dto.GameSectionResponse{}, err
	}
	section.Name = req.Name

	staleRef := ""
	if image != nil {
		artifact, err := s.artifacts.Store(ctx, image, PolicyGameImage, uintPtr(teacher.UserID))
		if err != nil {
			return dto.GameSectionResponse{}, err
		}
		staleRef = section.ImageRef
		section.ImageRef = artifact.Ref
		section.ImageURL = artifact.URL
	}

	if err := s.repo.UpdateSection(ctx, &section); err != nil {
		if image != nil {
			discardArtifact(ctx, s.artifacts, s.logger, section.ImageRef)
		}
		return dto.GameSectionResponse{}, err
	}
	discardArtifact(ctx, s.artifacts, s.logger, staleRef)

	return dto.NewGameSectionResponse(section), nil
}

// DeleteSection removes the section with its games and their scores.
func (s *gameService) DeleteSection(ctx context.Context, principal identity.Principal, id uint) error {
	teacher, err := authorize(principal, identity.CapManageGames)
	if err != nil {
		return err
	}

	if _, err := s.ownedSection(ctx, teacher.UserID, id); err != nil {
		return err
	}

	refs, err := s.repo.DeleteSection(ctx, id)
	if err != nil {
		return translateRepoError(err, "section not found")
	}
	for _, ref := range refs {
		discardArtifact(ctx, s.artifacts, s.logger, ref)
	}
	return nil
}

func (s *gameService) ListSections(ctx context.Context, principal identity.Principal) ([]dto.GameSectionResponse, error) {
	if _, err := authorize(principal, identity.CapViewGames); err != nil {
		return nil, err
	}
	sections, err := s.repo.ListSections(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewGameSectionResponseSlice(sections), nil
}

func (s *gameService) CreateGame(ctx context.Context, principal identity.Principal, req dto.GameRequest, image *multipart.FileHeader) (dto.GameResponse, error) {
	teacher, err := authorize(principal, identity.CapManageGames)
	if err != nil {
		return dto.GameResponse{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validator.Struct(req); err != nil {
		return dto.GameResponse{}, err
	}
	if image == nil {
		return dto.GameResponse{}, ErrGameImageRequired
	}

	section, err := s.repo.GetSection(ctx, req.SectionID)
	if err != nil {
		return dto.GameResponse{}, translateRepoError(err, "section not found")
	}

	artifact, err := s.artifacts.Store(ctx, image, PolicyGameImage, uintPtr(teacher.UserID))
	if err != nil {
		return dto.GameResponse{}, err
	}

	game := models.Game{
		Name:      req.Name,
		URL:       req.URL,
		SectionID: section.ID,
		ImageRef:  artifact.Ref,
		ImageURL:  artifact.URL,
		CreatedBy: teacher.UserID,
	}
	if err := s.repo.CreateGame(ctx, &game); err != nil {
		discardArtifact(ctx, s.artifacts, s.logger, artifact.Ref)
		return dto.GameResponse{}, err
	}
	game.Section = &section

	return dto.NewGameResponse(game), nil
}

func (s *gameService) UpdateGame(ctx context.Context, principal identity.Principal, id uint, req dto.GameRequest, image *multipart.FileHeader) (dto.GameResponse, error) {
	teacher, err := authorize(principal, identity.CapManageGames)
	if err != nil {
		return dto.GameResponse{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validator.Struct(req); err != nil {
		return dto.GameResponse{}, err
	}

	game, err := s.ownedGame(ctx, teacher.UserID, id)
	if err != nil {
		return dto.GameResponse{}, err
	}

	section, err := s.repo.GetSection(ctx, req.SectionID)
	if err != nil {
		return dto.GameResponse{}, translateRepoError(err, "section not found")
	}

	game.Name = req.Name
	game.URL = req.URL
	game.SectionID = section.ID
	game.Section = nil

	staleRef := ""
	if image != nil {
		artifact, err := s.artifacts.Store(ctx, image, PolicyGameImage, uintPtr(teacher.UserID))
		if err != nil {
			return dto.GameResponse{}, err
		}
		staleRef = game.ImageRef
		game.ImageRef = artifact.Ref
		game.ImageURL = artifact.URL
	}

	if err := s.repo.UpdateGame(ctx, &game); err != nil {
		if image != nil {
			discardArtifact(ctx, s.artifacts, s.logger, game.ImageRef)
		}
		return dto.GameResponse{}, err
	}
	discardArtifact(ctx, s.artifacts, s.logger, staleRef)
	game.Section = &section

	return dto.NewGameResponse(game), nil
}

func (s *gameService) DeleteGame(ctx context.Context, principal identity.Principal, id uint) error {
	teacher, err := authorize(principal, identity.CapManageGames)
	if err != nil {
		return err
	}

	if _, err := s.ownedGame(ctx, teacher.UserID, id); err != nil {
		return err
	}

	refs, err := s.repo.DeleteGame(ctx, id)
	if err != nil {
		return translateRepoError(err, "game not found")
	}
	for _, ref := range refs {
		discardArtifact(ctx, s.artifacts, s.logger, ref)
	}
	return nil
}

func (s *gameService) ListGames(ctx context.Context, principal identity.Principal, sectionID uint) ([]dto.GameResponse, error) {
	if _, err := authorize(principal, identity.CapViewGames); err != nil {
		return nil, err
	}

	var filter *uint
	if sectionID > 0 {
		filter = uintPtr(sectionID)
	}
	games, err := s.repo.ListGames(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewGameResponseSlice(games), nil
}

func (s *gameService) SubmitScore(ctx context.Context, principal identity.Principal, gameID uint, screenshot *multipart.FileHeader) (dto.GameScoreResponse, error) {
	learner, err := authorize(principal, identity.CapPlayGames)
	if err != nil {
		return dto.GameScoreResponse{}, err
	}

	game, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return dto.GameScoreResponse{}, translateRepoError(err, "game not found")
	}

	artifact, err := s.artifacts.Store(ctx, screenshot, PolicyScreenshot, uintPtr(learner.UserID))
	if err != nil {
		return dto.GameScoreResponse{}, err
	}

	score := models.GameScore{
		GameID:        game.ID,
		LearnerID:     learner.UserID,
		ScreenshotRef: artifact.Ref,
		ScreenshotURL: artifact.URL,
		SubmittedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateScore(ctx, &score); err != nil {
		discardArtifact(ctx, s.artifacts, s.logger, artifact.Ref)
		return dto.GameScoreResponse{}, err
	}
	score.Game = &game

	return dto.NewGameScoreResponse(score), nil
}

func (s *gameService) ListMyScores(ctx context.Context, principal identity.Principal) ([]dto.GameScoreResponse, error) {
	learner, err := authorize(principal, identity.CapPlayGames)
	if err != nil {
		return nil, err
	}
	scores, err := s.repo.ListScoresByLearner(ctx, learner.UserID)
	if err != nil {
		return nil, err
	}
	return dto.NewGameScoreResponseSlice(scores), nil
}

func (s *gameService) ListScores(ctx context.Context, principal identity.Principal) ([]dto.GameScoreResponse, error) {
	teacher, err := authorize(principal, identity.CapManageGames)
	if err != nil {
		return nil, err
	}
	scores, err := s.repo.ListScoresByOwner(ctx, teacher.UserID)
	if err != nil {
		return nil, err
	}
	return dto.NewGameScoreResponseSlice(scores), nil
}

// ReviewScore marks a score reviewed. Reviewing twice is an InvalidState.
func (s *gameService) ReviewScore(ctx context.Context, principal identity.Principal, id uint) (dto.GameScoreResponse, error) {
	teacher, err := authorize(principal, identity.CapManageGames)
	if err != nil {
		return dto.GameScoreResponse{}, err
	}

	score, err := s.repo.GetScore(ctx, id)
	if err != nil {
		return dto.GameScoreResponse{}, translateRepoError(err, "score not found")
	}
	if score.Game == nil || score.Game.CreatedBy != teacher.UserID {
		return dto.GameScoreResponse{}, apperror.Forbidden("score belongs to another teacher's game")
	}
	if score.Reviewed {
		return dto.GameScoreResponse{}, ErrScoreAlreadyReviewed
	}

	changed, err := s.repo.MarkReviewed(ctx, score.ID)
	if err != nil {
		return dto.GameScoreResponse{}, err
	}
	if !changed {
		return dto.GameScoreResponse{}, ErrScoreAlreadyReviewed
	}

	score.Reviewed = true
	return dto.NewGameScoreResponse(score), nil
}

func (s *gameService) ownedSection(ctx context.Context, teacherID, id uint) (models.GameSection, error) {
	section, err := s.repo.GetSection(ctx, id)
	if err != nil {
		return models.GameSection{}, translateRepoError(err, "section not found")
	}
	if section.CreatedBy != teacherID {
		return models.GameSection{}, apperror.Forbidden("section belongs to another teacher")
	}
	return section, nil
}

func (s *gameService) ownedGame(ctx context.Context, teacherID, id uint) (models.Game, error) {
	game, err := s.repo.GetGame(ctx, id)
	if err != nil {
		return models.Game{}, translateRepoError(err, "game not found")
	}
	if game.CreatedBy != teacherID {
		return models.Game{}, apperror.Forbidden("game belongs to another teacher")
	}
	return game, nil
}
