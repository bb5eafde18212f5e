package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/events"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

func TestCreateItemPublishesToCohort(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)
	backend := newMemoryBackend()
	users := repository.NewUserRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, testLogger())
	publisher := &events.RecordingPublisher{}

	svc := NewItemService(
		repository.NewItemRepository(db),
		repository.NewCurriculumRepository(db),
		repository.NewLessonRepository(db),
		users,
		newTestArtifactStore(db, backend),
		NewNotifier(repository.NewGuardianRepository(db), users, notifications, testLogger()),
		publisher,
		validator.New(),
		testLogger(),
	)
	ctx := context.Background()

	_, err := svc.Create(ctx, principalOf(fx.teacher), dto.ItemCreateRequest{
		Kind: "test", Title: "Essay", ProgramID: fx.program.ID, Difficulty: "hard",
	}, nil)
	require.ErrorIs(t, err, apperror.ErrValidation)

	item, err := svc.Create(ctx, principalOf(fx.teacher), dto.ItemCreateRequest{
		Kind: "Quiz", Title: "Shapes", ProgramID: fx.program.ID, Difficulty: "easy",
	}, buildFileHeader(t, "shapes.png", pngBytes))
	require.NoError(t, err)
	require.Equal(t, models.ItemKindQuiz, item.Kind)

	inbox := notificationsFor(t, db, fx.learner.ID)
	require.Len(t, inbox, 1)
	require.Equal(t, string(events.EventItemPublished), inbox[0].Type)

	published := publisher.Events()
	require.Len(t, published, 1)
	require.Equal(t, events.EventItemPublished, published[0].Type)
	require.Nil(t, published[0].SubmissionID)

	listed, err := svc.List(ctx, principalOf(fx.learner), ItemListFilter{Kind: "quiz"})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	outsider := seedSchool(t, db).learner
	_, err = svc.Get(ctx, principalOf(outsider), item.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, principalOf(fx.teacher), item.ID))
	require.Zero(t, backend.count())
}
