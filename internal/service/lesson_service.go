package service

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

const lessonPagesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "maxItems": 200,
  "items": {
    "type": "object",
    "required": ["content"],
    "additionalProperties": false,
    "properties": {
      "title": {"type": "string", "maxLength": 255},
      "content": {"type": "string", "minLength": 1}
    }
  }
}`

var (
	// ErrInvalidLessonPages indicates the pages payload does not match the page schema.
	ErrInvalidLessonPages = apperror.Validation("lesson pages are invalid")
	// ErrLessonPageOutOfRange indicates progress past the last page.
	ErrLessonPageOutOfRange = apperror.Validation("current page is out of range")
)

// LessonListFilter narrows lesson listings from the handler.
type LessonListFilter struct {
	ProgramID uint
	UnitID    uint
}

// LessonService manages lessons and learner progress through them.
type LessonService interface {
	Create(ctx context.Context, principal identity.Principal, req dto.LessonCreateRequest, media *multipart.FileHeader) (dto.LessonResponse, error)
	Update(ctx context.Context, principal identity.Principal, id uint, req dto.LessonUpdateRequest, media *multipart.FileHeader) (dto.LessonResponse, error)
	Delete(ctx context.Context, principal identity.Principal, id uint) error
	Get(ctx context.Context, principal identity.Principal, id uint) (dto.LessonResponse, error)
	List(ctx context.Context, principal identity.Principal, filter LessonListFilter) ([]dto.LessonResponse, error)
	TrackProgress(ctx context.Context, principal identity.Principal, lessonID uint, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error)
	MyProgress(ctx context.Context, principal identity.Principal) ([]dto.LessonProgressResponse, error)
}

type lessonService struct {
	lessons    repository.LessonRepository
	progress   repository.LessonProgressRepository
	curriculum repository.CurriculumRepository
	users      repository.UserRepository
	artifacts  ArtifactStore
	validator  *validator.Validate
	schema     *jsonschema.Schema
	logger     zerolog.Logger
	now        func() time.Time
}

// NewLessonService constructs the lesson service.
func NewLessonService(
	lessons repository.LessonRepository,
	progress repository.LessonProgressRepository,
	curriculum repository.CurriculumRepository,
	users repository.UserRepository,
	artifacts ArtifactStore,
	validate *validator.Validate,
	logger zerolog.Logger,
) LessonService {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("lesson_pages.json", strings.NewReader(lessonPagesSchema)); err != nil {
		panic(err)
	}

	return &lessonService{
		lessons:    lessons,
		progress:   progress,
		curriculum: curriculum,
		users:      users,
		artifacts:  artifacts,
		validator:  validate,
		schema:     compiler.MustCompile("lesson_pages.json"),
		logger:     logger.With().Str("component", "lesson_service").Logger(),
		now:        time.Now,
	}
}

func (s *lessonService) Create(ctx context.Context, principal identity.Principal, req dto.LessonCreateRequest, media *multipart.FileHeader) (dto.LessonResponse, error) {
	teacher, err := authorize(principal, identity.CapManageLessons)
	if err != nil {
		return dto.LessonResponse{}, err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonResponse{}, err
	}

	program, err := s.curriculum.GetProgram(ctx, req.ProgramID)
	if err != nil {
		return dto.LessonResponse{}, translateRepoError(err, "program not found")
	}
	if err := s.ensureUnit(ctx, req.UnitID, program.ID); err != nil {
		return dto.LessonResponse{}, err
	}

	pages, err := s.parsePages(req.Pages)
	if err != nil {
		return dto.LessonResponse{}, err
	}

	lesson := models.Lesson{
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   teacher.UserID,
		ProgramID:   program.ID,
		UnitID:      req.UnitID,
		Pages:       pages,
	}

	if media != nil {
		artifact, err := s.artifacts.Store(ctx, media, PolicyLessonMedia, uintPtr(teacher.UserID))
		if err != nil {
			return dto.LessonResponse{}, err
		}
		lesson.MediaRef = artifact.Ref
		lesson.MediaURL = artifact.URL
	}

	if err := s.lessons.Create(ctx, &lesson); err != nil {
		discardArtifact(ctx, s.artifacts, s.logger, lesson.MediaRef)
		return dto.LessonResponse{}, err
	}
	lesson.Program = &program

	s.logger.Info().Uint("lesson_id", lesson.ID).Uint("teacher_id", teacher.UserID).Msg("lesson created")
	return dto.NewLessonResponse(lesson), nil
}

func (s *lessonService) Update(ctx context.Context, principal identity.Principal, id uint, req dto.LessonUpdateRequest, media *multipart.FileHeader) (dto.LessonResponse, error) {
	teacher, err := authorize(principal, identity.CapManageLessons)
	if err != nil {
		return dto.LessonResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonResponse{}, err
	}

	lesson, err := s.ownedLesson(ctx, teacher, id)
	if err != nil {
		return dto.LessonResponse{}, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return dto.LessonResponse{}, apperror.Validation("title cannot be empty")
		}
		lesson.Title = title
	}
	if req.Description != nil {
		lesson.Description = strings.TrimSpace(*req.Description)
	}
	if req.UnitID != nil {
		if err := s.ensureUnit(ctx, req.UnitID, lesson.ProgramID); err != nil {
			return dto.LessonResponse{}, err
		}
		lesson.UnitID = req.UnitID
	}
	if req.Pages != nil {
		pages, err := s.parsePages(*req.Pages)
		if err != nil {
			return dto.LessonResponse{}, err
		}
		lesson.Pages = pages
	}

	staleRef := ""
	if media != nil {
		artifact, err := s.artifacts.Store(ctx, media, PolicyLessonMedia, uintPtr(teacher.UserID))
		if err != nil {
			return dto.LessonResponse{}, err
		}
		staleRef = lesson.MediaRef
		lesson.MediaRef = artifact.Ref
		lesson.MediaURL = artifact.URL
	}

	if err := s.lessons.Update(ctx, &lesson); err != nil {
		if media != nil {
			discardArtifact(ctx, s.artifacts, s.logger, lesson.MediaRef)
		}
		return dto.LessonResponse{}, err
	}
	discardArtifact(ctx, s.artifacts, s.logger, staleRef)

	return dto.NewLessonResponse(lesson), nil
}

func (s *lessonService) Delete(ctx context.Context, principal identity.Principal, id uint) error {
	teacher, err := authorize(principal, identity.CapManageLessons)
	if err != nil {
		return err
	}

	lesson, err := s.ownedLesson(ctx, teacher, id)
	if err != nil {
		return err
	}

	if err := s.lessons.Delete(ctx, lesson.ID); err != nil {
		return translateRepoError(err, "lesson not found")
	}
	discardArtifact(ctx, s.artifacts, s.logger, lesson.MediaRef)
	return nil
}

func (s *lessonService) Get(ctx context.Context, principal identity.Principal, id uint) (dto.LessonResponse, error) {
	caller, err := authorize(principal, identity.CapViewLessons)
	if err != nil {
		return dto.LessonResponse{}, err
	}

	lesson, err := s.visibleLesson(ctx, caller, id)
	if err != nil {
		return dto.LessonResponse{}, err
	}
	return dto.NewLessonResponse(lesson), nil
}

func (s *lessonService) List(ctx context.Context, principal identity.Principal, filter LessonListFilter) ([]dto.LessonResponse, error) {
	caller, err := authorize(principal, identity.CapViewLessons)
	if err != nil {
		return nil, err
	}

	repoFilter := repository.LessonFilter{}
	if filter.ProgramID > 0 {
		repoFilter.ProgramID = uintPtr(filter.ProgramID)
	}
	if filter.UnitID > 0 {
		repoFilter.UnitID = uintPtr(filter.UnitID)
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
			return []dto.LessonResponse{}, nil
		}
		repoFilter.LevelID = uintPtr(levelID)
	}

	lessons, err := s.lessons.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	return dto.NewLessonResponseSlice(lessons), nil
}

func (s *lessonService) TrackProgress(ctx context.Context, principal identity.Principal, lessonID uint, req dto.LessonProgressRequest) (dto.LessonProgressResponse, error) {
	learner, err := authorize(principal, identity.CapTrackLessons)
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonProgressResponse{}, err
	}

	lesson, err := s.visibleLesson(ctx, learner, lessonID)
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}

	if total := pageCount(lesson.Pages); total > 0 && req.CurrentPage >= total {
		return dto.LessonProgressResponse{}, ErrLessonPageOutOfRange
	}

	progress := models.LessonProgress{
		StudentID:   learner.UserID,
		LessonID:    lesson.ID,
		Status:      models.LessonProgressInProgress,
		CurrentPage: req.CurrentPage,
	}

	existing, err := s.progress.Get(ctx, learner.UserID, lesson.ID)
	switch {
	case err == nil:
		// completion sticks once reached
		if existing.Status == models.LessonProgressCompleted {
			progress.Status = models.LessonProgressCompleted
			progress.CompletedAt = existing.CompletedAt
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.LessonProgressResponse{}, err
	}

	if req.Completed && progress.CompletedAt == nil {
		completedAt := s.now().UTC()
		progress.Status = models.LessonProgressCompleted
		progress.CompletedAt = &completedAt
	}

	if err := s.progress.Upsert(ctx, &progress); err != nil {
		return dto.LessonProgressResponse{}, err
	}

	stored, err := s.progress.Get(ctx, learner.UserID, lesson.ID)
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}
	return dto.NewLessonProgressResponse(stored), nil
}

func (s *lessonService) MyProgress(ctx context.Context, principal identity.Principal) ([]dto.LessonProgressResponse, error) {
	learner, err := authorize(principal, identity.CapTrackLessons)
	if err != nil {
		return nil, err
	}

	rows, err := s.progress.ListByStudent(ctx, learner.UserID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.LessonProgressResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.NewLessonProgressResponse(row))
	}
	return out, nil
}

func (s *lessonService) ownedLesson(ctx context.Context, teacher identity.Principal, id uint) (models.Lesson, error) {
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return models.Lesson{}, translateRepoError(err, "lesson not found")
	}
	if lesson.TeacherID != teacher.UserID {
		return models.Lesson{}, apperror.Forbidden("lesson belongs to another teacher")
	}
	return lesson, nil
}

// visibleLesson hides lessons of other levels from learners.
func (s *lessonService) visibleLesson(ctx context.Context, caller identity.Principal, id uint) (models.Lesson, error) {
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return models.Lesson{}, translateRepoError(err, "lesson not found")
	}
	if caller.Role != identity.RoleLearner {
		return lesson, nil
	}

	levelID, err := s.learnerLevel(ctx, caller.UserID)
	if err != nil {
		return models.Lesson{}, err
	}
	if lesson.Program == nil || lesson.Program.LevelID != levelID {
		return models.Lesson{}, apperror.NotFound("lesson not found")
	}
	return lesson, nil
}

func (s *lessonService) learnerLevel(ctx context.Context, learnerID uint) (uint, error) {
	user, err := s.users.GetByID(ctx, learnerID)
	if err != nil {
		return 0, translateRepoError(err, "learner not found")
	}
	if user.LevelID == nil {
		return 0, nil
	}
	return *user.LevelID, nil
}

func (s *lessonService) ensureUnit(ctx context.Context, unitID *uint, programID uint) error {
	if unitID == nil {
		return nil
	}
	unit, err := s.curriculum.GetUnit(ctx, *unitID)
	if err != nil {
		return translateRepoError(err, "unit not found")
	}
	if unit.ProgramID != programID {
		return apperror.Validation("unit does not belong to the program")
	}
	return nil
}

func (s *lessonService) parsePages(raw string) (datatypes.JSON, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return datatypes.JSON("[]"), nil
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, ErrInvalidLessonPages
	}
	if err := s.schema.Validate(decoded); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, ErrInvalidLessonPages.Error(), err)
	}

	normalized, err := json.Marshal(decoded)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(normalized), nil
}

func pageCount(pages datatypes.JSON) int {
	if len(pages) == 0 {
		return 0
	}
	var decoded []json.RawMessage
	if err := json.Unmarshal(pages, &decoded); err != nil {
		return 0
	}
	return len(decoded)
}
