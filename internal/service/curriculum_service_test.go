package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

func TestCurriculumWritesAreAudited(t *testing.T) {
	db := setupServiceDB(t)
	admin := seedUser(t, db, models.UserRoleAdmin, nil)
	teacher := seedUser(t, db, models.UserRoleTeacher, nil)
	activity := NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	svc := NewCurriculumService(repository.NewCurriculumRepository(db), activity, validator.New(), testLogger())
	ctx := context.Background()

	_, err := svc.CreateLevel(ctx, principalOf(teacher), dto.LevelCreateRequest{Name: "CP"})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	level, err := svc.CreateLevel(ctx, principalOf(admin), dto.LevelCreateRequest{Name: " CP "})
	require.NoError(t, err)
	require.Equal(t, "CP", level.Name)

	_, err = svc.CreateProgram(ctx, principalOf(admin), dto.ProgramCreateRequest{Title: "Reading", LevelID: level.ID + 100})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	program, err := svc.CreateProgram(ctx, principalOf(admin), dto.ProgramCreateRequest{Title: "Reading", LevelID: level.ID})
	require.NoError(t, err)
	require.Equal(t, "CP", program.LevelName)

	_, err = svc.CreateUnit(ctx, principalOf(admin), dto.UnitCreateRequest{Title: "Letters", ProgramID: program.ID})
	require.NoError(t, err)

	programs, err := svc.ListPrograms(ctx, &level.ID)
	require.NoError(t, err)
	require.Len(t, programs, 1)

	units, err := svc.ListUnits(ctx, program.ID)
	require.NoError(t, err)
	require.Len(t, units, 1)

	logs, err := activity.List(ctx, principalOf(admin), dto.ActivityListRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, logs.Items, 3)

	actions := make([]string, 0, len(logs.Items))
	for _, entry := range logs.Items {
		actions = append(actions, entry.Action)
	}
	require.ElementsMatch(t, []string{"level.create", "program.create", "unit.create"}, actions)

	_, err = activity.List(ctx, principalOf(teacher), dto.ActivityListRequest{})
	require.ErrorIs(t, err, apperror.ErrForbidden)
}
