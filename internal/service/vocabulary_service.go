package service

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

// ErrVocabularyImageRequired indicates a new word was sent without its image.
var ErrVocabularyImageRequired = apperror.Validation("vocabulary image is required")

// VocabularyMedia carries the optional files of a vocabulary request.
type VocabularyMedia struct {
	Image *multipart.FileHeader
	Audio *multipart.FileHeader
}

// VocabularyService manages illustrated vocabulary words.
type VocabularyService interface {
	CreateCategory(ctx context.Context, principal identity.Principal, req dto.VocabularyCategoryRequest) (dto.VocabularyCategoryResponse, error)
	ListCategories(ctx context.Context, principal identity.Principal) ([]dto.VocabularyCategoryResponse, error)
	Create(ctx context.Context, principal identity.Principal, req dto.VocabularyRequest, media VocabularyMedia) (dto.VocabularyResponse, error)
	Update(ctx context.Context, principal identity.Principal, id uint, req dto.VocabularyRequest, media VocabularyMedia) (dto.VocabularyResponse, error)
	Delete(ctx context.Context, principal identity.Principal, id uint) error
	List(ctx context.Context, principal identity.Principal, categoryID uint) ([]dto.VocabularyResponse, error)
}

type vocabularyService struct {
	repo      repository.VocabularyRepository
	artifacts ArtifactStore
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewVocabularyService constructs the vocabulary service.
func NewVocabularyService(repo repository.VocabularyRepository, artifacts ArtifactStore, validate *validator.Validate, logger zerolog.Logger) VocabularyService {
	return &vocabularyService{
		repo:      repo,
		artifacts: artifacts,
		validator: validate,
		logger:    logger.With().Str("component", "vocabulary_service").Logger(),
	}
}

func (s *vocabularyService) CreateCategory(ctx context.Context, principal identity.Principal, req dto.VocabularyCategoryRequest) (dto.VocabularyCategoryResponse, error) {
	if _, err := authorize(principal, identity.CapManageVocabulary); err != nil {
		return dto.VocabularyCategoryResponse{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return dto.VocabularyCategoryResponse{}, err
	}

	category := models.VocabularyCategory{Name: req.Name}
	if err := s.repo.CreateCategory(ctx, &category); err != nil {
		return dto.VocabularyCategoryResponse{}, translateRepoError(err, "category not found")
	}
	return dto.VocabularyCategoryResponse{ID: category.ID, Name: category.Name}, nil
}

func (s *vocabularyService) ListCategories(ctx context.Context, principal identity.Principal) ([]dto.VocabularyCategoryResponse, error) {
	if _, err := authorize(principal, identity.CapViewVocabulary); err != nil {
		return nil, err
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewVocabularyCategoryResponseSlice(categories), nil
}

func (s *vocabularyService) Create(ctx context.Context, principal identity.Principal, req dto.VocabularyRequest, media VocabularyMedia) (dto.VocabularyResponse, error) {
	teacher, err := authorize(principal, identity.CapManageVocabulary)
	if err != nil {
		return dto.VocabularyResponse{}, err
	}
	req.Word = strings.TrimSpace(req.Word)
	if err := s.validator.Struct(req); err != nil {
		return dto.VocabularyResponse{}, err
	}
	if media.Image == nil {
		return dto.VocabularyResponse{}, ErrVocabularyImageRequired
	}

	category, err := s.repo.GetCategory(ctx, req.CategoryID)
	if err != nil {
		return dto.VocabularyResponse{}, translateRepoError(err, "category not found")
	}

	word := models.Vocabulary{
		Word:       req.Word,
		CategoryID: category.ID,
		TeacherID:  teacher.UserID,
	}

	stored, err := s.storeMedia(ctx, teacher.UserID, media, &word)
	if err != nil {
		return dto.VocabularyResponse{}, err
	}

	if err := s.repo.Create(ctx, &word); err != nil {
		s.discard(ctx, stored)
		return dto.VocabularyResponse{}, err
	}
	word.Category = &category

	return dto.NewVocabularyResponse(word), nil
}

// Update replaces the provided media; replaced files are removed once the row is saved.
func (s *vocabularyService) Update(ctx context.Context, principal identity.Principal, id uint, req dto.VocabularyRequest, media VocabularyMedia) (dto.VocabularyResponse, error) {
	teacher, err := authorize(principal, identity.CapManageVocabulary)
	if err != nil {
		return dto.VocabularyResponse{}, err
	}
	req.Word = strings.TrimSpace(req.Word)
	if err := s.validator.Struct(req); err != nil {
		return dto.VocabularyResponse{}, err
	}

	word, err := s.ownedWord(ctx, teacher.UserID, id)
	if err != nil {
		return dto.VocabularyResponse{}, err
	}

	category, err := s.repo.GetCategory(ctx, req.CategoryID)
	if err != nil {
		return dto.VocabularyResponse{}, translateRepoError(err, "category not found")
	}

	previousImage := word.ImageRef
	previousAudio := word.AudioRef

	word.Word = req.Word
	word.CategoryID = category.ID
	word.Category = nil

	stored, err := s.storeMedia(ctx, teacher.UserID, media, &word)
	if err != nil {
		return dto.VocabularyResponse{}, err
	}

	if err := s.repo.Update(ctx, &word); err != nil {
		s.discard(ctx, stored)
		return dto.VocabularyResponse{}, err
	}

	if media.Image != nil {
		discardArtifact(ctx, s.artifacts, s.logger, previousImage)
	}
	if media.Audio != nil {
		discardArtifact(ctx, s.artifacts, s.logger, previousAudio)
	}
	word.Category = &category

	return dto.NewVocabularyResponse(word), nil
}

func (s *vocabularyService) Delete(ctx context.Context, principal identity.Principal, id uint) error {
	teacher, err := authorize(principal, identity.CapManageVocabulary)
	if err != nil {
		return err
	}

	word, err := s.ownedWord(ctx, teacher.UserID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, word.ID); err != nil {
		return translateRepoError(err, "vocabulary not found")
	}

	discardArtifact(ctx, s.artifacts, s.logger, word.ImageRef)
	discardArtifact(ctx, s.artifacts, s.logger, word.AudioRef)
	return nil
}

func (s *vocabularyService) List(ctx context.Context, principal identity.Principal, categoryID uint) ([]dto.VocabularyResponse, error) {
	if _, err := authorize(principal, identity.CapViewVocabulary); err != nil {
		return nil, err
	}

	var filter *uint
	if categoryID > 0 {
		filter = uintPtr(categoryID)
	}

	words, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewVocabularyResponseSlice(words), nil
}

func (s *vocabularyService) ownedWord(ctx context.Context, teacherID, id uint) (models.Vocabulary, error) {
	word, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Vocabulary{}, translateRepoError(err, "vocabulary not found")
	}
	if word.TeacherID != teacherID {
		return models.Vocabulary{}, apperror.Forbidden("vocabulary belongs to another teacher")
	}
	return word, nil
}

// storeMedia stores the provided files onto word and returns the new refs.
func (s *vocabularyService) storeMedia(ctx context.Context, ownerID uint, media VocabularyMedia, word *models.Vocabulary) ([]string, error) {
	stored := make([]string, 0, 2)

	if media.Image != nil {
		image, err := s.artifacts.Store(ctx, media.Image, PolicyVocabularyImage, uintPtr(ownerID))
		if err != nil {
			return nil, err
		}
		stored = append(stored, image.Ref)
		word.ImageRef = image.Ref
		word.ImageURL = image.URL
	}

	if media.Audio != nil {
		audio, err := s.artifacts.Store(ctx, media.Audio, PolicyVocabularyAudio, uintPtr(ownerID))
		if err != nil {
			s.discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, audio.Ref)
		word.AudioRef = audio.Ref
		word.AudioURL = audio.URL
	}

	return stored, nil
}

func (s *vocabularyService) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		discardArtifact(ctx, s.artifacts, s.logger, ref)
	}
}
