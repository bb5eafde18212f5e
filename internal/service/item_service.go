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
	"github.com/noah-isme/sekolah-go-api/internal/events"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/observability"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

// ItemListFilter narrows item listings from the handler.
type ItemListFilter struct {
	Kind      string
	ProgramID uint
	LessonID  uint
}

// ItemService manages tests and quizzes.
type ItemService interface {
	Create(ctx context.Context, principal identity.Principal, req dto.ItemCreateRequest, media *multipart.FileHeader) (dto.ItemResponse, error)
	Update(ctx context.Context, principal identity.Principal, id uint, req dto.ItemUpdateRequest, media *multipart.FileHeader) (dto.ItemResponse, error)
	Delete(ctx context.Context, principal identity.Principal, id uint) error
	Get(ctx context.Context, principal identity.Principal, id uint) (dto.ItemResponse, error)
	List(ctx context.Context, principal identity.Principal, filter ItemListFilter) ([]dto.ItemResponse, error)
}

type itemService struct {
	items      repository.ItemRepository
	curriculum repository.CurriculumRepository
	lessons    repository.LessonRepository
	users      repository.UserRepository
	artifacts  ArtifactStore
	notifier   Notifier
	publisher  events.Publisher
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewItemService constructs the assignable item service.
func NewItemService(
	items repository.ItemRepository,
	curriculum repository.CurriculumRepository,
	lessons repository.LessonRepository,
	users repository.UserRepository,
	artifacts ArtifactStore,
	notifier Notifier,
	publisher events.Publisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) ItemService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &itemService{
		items:      items,
		curriculum: curriculum,
		lessons:    lessons,
		users:      users,
		artifacts:  artifacts,
		notifier:   notifier,
		publisher:  publisher,
		validator:  validate,
		logger:     logger.With().Str("component", "item_service").Logger(),
	}
}

func (s *itemService) Create(ctx context.Context, principal identity.Principal, req dto.ItemCreateRequest, media *multipart.FileHeader) (dto.ItemResponse, error) {
	teacher, err := authorize(principal, identity.CapManageItems)
	if err != nil {
		return dto.ItemResponse{}, err
	}

	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	req.Title = strings.TrimSpace(req.Title)
	req.Difficulty = strings.ToLower(strings.TrimSpace(req.Difficulty))
	if err := s.validator.Struct(req); err != nil {
		return dto.ItemResponse{}, err
	}
	if req.Kind == models.ItemKindTest && req.Difficulty != "" {
		return dto.ItemResponse{}, apperror.Validation("difficulty applies to quizzes only")
	}

	program, err := s.curriculum.GetProgram(ctx, req.ProgramID)
	if err != nil {
		return dto.ItemResponse{}, translateRepoError(err, "program not found")
	}
	if err := s.ensureLesson(ctx, req.LessonID, teacher.UserID, program.ID); err != nil {
		return dto.ItemResponse{}, err
	}
	if req.UnitID != nil {
		unit, err := s.curriculum.GetUnit(ctx, *req.UnitID)
		if err != nil {
			return dto.ItemResponse{}, translateRepoError(err, "unit not found")
		}
		if unit.ProgramID != program.ID {
			return dto.ItemResponse{}, apperror.Validation("unit does not belong to the program")
		}
	}

	item := models.AssignableItem{
		Kind:         req.Kind,
		Title:        req.Title,
		Instructions: strings.TrimSpace(req.Instructions),
		Difficulty:   req.Difficulty,
		TeacherID:    teacher.UserID,
		ProgramID:    program.ID,
		LessonID:     req.LessonID,
		UnitID:       req.UnitID,
	}

	if media != nil {
		artifact, err := s.artifacts.Store(ctx, media, PolicyItemMedia, uintPtr(teacher.UserID))
		if err != nil {
			return dto.ItemResponse{}, err
		}
		item.MediaRef = artifact.Ref
		item.MediaURL = artifact.URL
	}

	if err := s.items.Create(ctx, &item); err != nil {
		discardArtifact(ctx, s.artifacts, s.logger, item.MediaRef)
		return dto.ItemResponse{}, err
	}
	item.Program = &program

	observability.SubmissionEvents().WithLabelValues(string(events.EventItemPublished)).Inc()
	delivered := 0
	if s.notifier != nil {
		delivered = s.notifier.Notify(ctx, events.EventItemPublished, nil, item)
	}
	publishEvent(ctx, s.publisher, s.logger, events.EventItemPublished, nil, item, teacher.UserID, delivered, time.Now())

	return dto.NewItemResponse(item), nil
}

func (s *itemService) Update(ctx context.Context, principal identity.Principal, id uint, req dto.ItemUpdateRequest, media *multipart.FileHeader) (dto.ItemResponse, error) {
	teacher, err := authorize(principal, identity.CapManageItems)
	if err != nil {
		return dto.ItemResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ItemResponse{}, err
	}

	item, err := s.ownedItem(ctx, teacher.UserID, id)
	if err != nil {
		return dto.ItemResponse{}, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return dto.ItemResponse{}, apperror.Validation("title cannot be empty")
		}
		item.Title = title
	}
	if req.Instructions != nil {
		item.Instructions = strings.TrimSpace(*req.Instructions)
	}
	if req.Difficulty != nil {
		difficulty := strings.ToLower(strings.TrimSpace(*req.Difficulty))
		if item.Kind == models.ItemKindTest && difficulty != "" {
			return dto.ItemResponse{}, apperror.Validation("difficulty applies to quizzes only")
		}
		item.Difficulty = difficulty
	}

	staleRef := ""
	if media != nil {
		artifact, err := s.artifacts.Store(ctx, media, PolicyItemMedia, uintPtr(teacher.UserID))
		if err != nil {
			return dto.ItemResponse{}, err
		}
		staleRef = item.MediaRef
		item.MediaRef = artifact.Ref
		item.MediaURL = artifact.URL
	}

	if err := s.items.Update(ctx, &item); err != nil {
		if media != nil {
			discardArtifact(ctx, s.artifacts, s.logger, item.MediaRef)
		}
		return dto.ItemResponse{}, err
	}
	discardArtifact(ctx, s.artifacts, s.logger, staleRef)

	return dto.NewItemResponse(item), nil
}

// Delete removes the item with all submissions to it, then discards every
// artifact the removed rows referenced.
func (s *itemService) Delete(ctx context.Context, principal identity.Principal, id uint) error {
	teacher, err := authorize(principal, identity.CapManageItems)
	if err != nil {
		return err
	}

	item, err := s.ownedItem(ctx, teacher.UserID, id)
	if err != nil {
		return err
	}

	removed, err := s.items.DeleteCascade(ctx, item.ID)
	if err != nil {
		return translateRepoError(err, "item not found")
	}

	discardArtifact(ctx, s.artifacts, s.logger, item.MediaRef)
	for _, submission := range removed {
		discardArtifact(ctx, s.artifacts, s.logger, submission.ArtifactRef)
		discardArtifact(ctx, s.artifacts, s.logger, stringValue(submission.CorrectionRef))
	}

	s.logger.Info().Uint("item_id", item.ID).Int("submissions", len(removed)).Msg("item deleted")
	return nil
}

func (s *itemService) Get(ctx context.Context, principal identity.Principal, id uint) (dto.ItemResponse, error) {
	caller, err := authorize(principal, identity.CapViewItems)
	if err != nil {
		return dto.ItemResponse{}, err
	}

	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return dto.ItemResponse{}, translateRepoError(err, "item not found")
	}

	switch caller.Role {
	case identity.RoleLearner:
		levelID, err := s.learnerLevel(ctx, caller.UserID)
		if err != nil {
			return dto.ItemResponse{}, err
		}
		if levelID == 0 || item.LevelID() != levelID {
			return dto.ItemResponse{}, apperror.NotFound("item not found")
		}
	case identity.RoleInstructor:
		if item.TeacherID != caller.UserID {
			return dto.ItemResponse{}, ErrItemNotOwned
		}
	}

	return dto.NewItemResponse(item), nil
}

func (s *itemService) List(ctx context.Context, principal identity.Principal, filter ItemListFilter) ([]dto.ItemResponse, error) {
	caller, err := authorize(principal, identity.CapViewItems)
	if err != nil {
		return nil, err
	}

	repoFilter := repository.ItemFilter{Kind: normalizeKind(filter.Kind)}
	if filter.ProgramID > 0 {
		repoFilter.ProgramID = uintPtr(filter.ProgramID)
	}
	if filter.LessonID > 0 {
		repoFilter.LessonID = uintPtr(filter.LessonID)
	}

	switch caller.Role {
	case identity.RoleInstructor:
		repoFilter.TeacherID = uintPtr(caller.UserID)
	case identity.RoleLearner:
		levelID, err := s.learnerLevel(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if levelID == 0 {
			return []dto.ItemResponse{}, nil
		}
		repoFilter.LevelID = uintPtr(levelID)
	}

	items, err := s.items.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	return dto.NewItemResponseSlice(items), nil
}

func (s *itemService) ownedItem(ctx context.Context, teacherID, id uint) (models.AssignableItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return models.AssignableItem{}, translateRepoError(err, "item not found")
	}
	if item.TeacherID != teacherID {
		return models.AssignableItem{}, ErrItemNotOwned
	}
	return item, nil
}

func (s *itemService) ensureLesson(ctx context.Context, lessonID *uint, teacherID, programID uint) error {
	if lessonID == nil {
		return nil
	}
	lesson, err := s.lessons.GetByID(ctx, *lessonID)
	if err != nil {
		return translateRepoError(err, "lesson not found")
	}
	if lesson.TeacherID != teacherID {
		return apperror.Forbidden("lesson belongs to another teacher")
	}
	if lesson.ProgramID != programID {
		return apperror.Validation("lesson does not belong to the program")
	}
	return nil
}

func (s *itemService) learnerLevel(ctx context.Context, learnerID uint) (uint, error) {
	user, err := s.users.GetByID(ctx, learnerID)
	if err != nil {
		return 0, translateRepoError(err, "learner not found")
	}
	if user.LevelID == nil {
		return 0, nil
	}
	return *user.LevelID, nil
}
