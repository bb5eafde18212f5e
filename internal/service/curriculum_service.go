package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

// CurriculumService manages levels, programs and units.
type CurriculumService interface {
	CreateLevel(ctx context.Context, principal identity.Principal, req dto.LevelCreateRequest) (dto.LevelResponse, error)
	ListLevels(ctx context.Context) ([]dto.LevelResponse, error)
	CreateProgram(ctx context.Context, principal identity.Principal, req dto.ProgramCreateRequest) (dto.ProgramResponse, error)
	ListPrograms(ctx context.Context, levelID *uint) ([]dto.ProgramResponse, error)
	CreateUnit(ctx context.Context, principal identity.Principal, req dto.UnitCreateRequest) (dto.UnitResponse, error)
	ListUnits(ctx context.Context, programID uint) ([]dto.UnitResponse, error)
}

type curriculumService struct {
	repo      repository.CurriculumRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCurriculumService constructs the curriculum service.
func NewCurriculumService(repo repository.CurriculumRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) CurriculumService {
	return &curriculumService{
		repo:      repo,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "curriculum_service").Logger(),
	}
}

func (s *curriculumService) CreateLevel(ctx context.Context, principal identity.Principal, req dto.LevelCreateRequest) (dto.LevelResponse, error) {
	admin, err := authorize(principal, identity.CapManageCurriculum)
	if err != nil {
		return dto.LevelResponse{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return dto.LevelResponse{}, err
	}

	level := models.Level{Name: req.Name}
	if err := s.repo.CreateLevel(ctx, &level); err != nil {
		return dto.LevelResponse{}, translateRepoError(err, "level not found")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      admin,
		Action:     "level.create",
		EntityType: "level",
		EntityID:   uintPtr(level.ID),
		Metadata:   map[string]interface{}{"name": level.Name},
	})

	return dto.NewLevelResponse(level), nil
}

func (s *curriculumService) ListLevels(ctx context.Context) ([]dto.LevelResponse, error) {
	levels, err := s.repo.ListLevels(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewLevelResponseSlice(levels), nil
}

func (s *curriculumService) CreateProgram(ctx context.Context, principal identity.Principal, req dto.ProgramCreateRequest) (dto.ProgramResponse, error) {
	admin, err := authorize(principal, identity.CapManageCurriculum)
	if err != nil {
		return dto.ProgramResponse{}, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return dto.ProgramResponse{}, err
	}

	level, err := s.repo.GetLevel(ctx, req.LevelID)
	if err != nil {
		return dto.ProgramResponse{}, translateRepoError(err, "level not found")
	}

	program := models.Program{Title: req.Title, LevelID: level.ID}
	if err := s.repo.CreateProgram(ctx, &program); err != nil {
		return dto.ProgramResponse{}, err
	}
	program.Level = &level

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      admin,
		Action:     "program.create",
		EntityType: "program",
		EntityID:   uintPtr(program.ID),
		Metadata:   map[string]interface{}{"level_id": level.ID},
	})

	return dto.NewProgramResponse(program), nil
}

func (s *curriculumService) ListPrograms(ctx context.Context, levelID *uint) ([]dto.ProgramResponse, error) {
	programs, err := s.repo.ListPrograms(ctx, levelID)
	if err != nil {
		return nil, err
	}
	return dto.NewProgramResponseSlice(programs), nil
}

func (s *curriculumService) CreateUnit(ctx context.Context, principal identity.Principal, req dto.UnitCreateRequest) (dto.UnitResponse, error) {
	admin, err := authorize(principal, identity.CapManageCurriculum)
	if err != nil {
		return dto.UnitResponse{}, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return dto.UnitResponse{}, err
	}

	if _, err := s.repo.GetProgram(ctx, req.ProgramID); err != nil {
		return dto.UnitResponse{}, translateRepoError(err, "program not found")
	}

	unit := models.Unit{Title: req.Title, ProgramID: req.ProgramID}
	if err := s.repo.CreateUnit(ctx, &unit); err != nil {
		return dto.UnitResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      admin,
		Action:     "unit.create",
		EntityType: "unit",
		EntityID:   uintPtr(unit.ID),
	})

	return dto.NewUnitResponse(unit), nil
}

func (s *curriculumService) ListUnits(ctx context.Context, programID uint) ([]dto.UnitResponse, error) {
	if _, err := s.repo.GetProgram(ctx, programID); err != nil {
		return nil, translateRepoError(err, "program not found")
	}
	units, err := s.repo.ListUnits(ctx, programID)
	if err != nil {
		return nil, err
	}
	return dto.NewUnitResponseSlice(units), nil
}
