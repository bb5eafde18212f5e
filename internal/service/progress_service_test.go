package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

func TestAggregateProgressWithoutRecords(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)
	second := seedUser(t, db, models.UserRoleStudent, &fx.level.ID)
	require.NoError(t, repository.NewGuardianRepository(db).Link(context.Background(), fx.guardian.ID, second.ID))

	svc := NewProgressService(
		repository.NewGuardianRepository(db),
		repository.NewUserRepository(db),
		repository.NewLessonProgressRepository(db),
		repository.NewSubmissionRepository(db),
		nil,
		testLogger(),
	)

	summaries, err := svc.AggregateProgress(context.Background(), principalOf(fx.guardian))
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	for _, summary := range summaries {
		require.NotNil(t, summary.Lessons)
		require.NotNil(t, summary.Quizzes)
		require.NotNil(t, summary.Tests)
		require.Empty(t, summary.Lessons)
		require.Empty(t, summary.Quizzes)
		require.Empty(t, summary.Tests)
		require.Equal(t, fx.level.Name, summary.Level)
	}
	require.Equal(t, fx.learner.ID, summaries[0].LearnerID)
	require.Equal(t, second.ID, summaries[1].LearnerID)
}

func TestAggregateProgressGuardianWithoutDependents(t *testing.T) {
	db := setupServiceDB(t)
	lonely := seedUser(t, db, models.UserRoleParent, nil)

	svc := NewProgressService(
		repository.NewGuardianRepository(db),
		repository.NewUserRepository(db),
		repository.NewLessonProgressRepository(db),
		repository.NewSubmissionRepository(db),
		nil,
		testLogger(),
	)

	summaries, err := svc.AggregateProgress(context.Background(), principalOf(lonely))
	require.NoError(t, err)
	require.NotNil(t, summaries)
	require.Empty(t, summaries)

	_, err = svc.AggregateProgress(context.Background(), principalOf(seedUser(t, db, models.UserRoleTeacher, nil)))
	require.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestAggregateProgressSplitsQuizzesAndTests(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)
	ctx := context.Background()

	quiz := seedItem(t, db, fx.teacher.ID, fx.program.ID, models.ItemKindQuiz, "Times tables")
	test := seedItem(t, db, fx.teacher.ID, fx.program.ID, models.ItemKindTest, "Essay")

	score, maxScore := 6.0, 8.0
	feedback := "Nice structure"
	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.Submission{
		ItemID: quiz.ID, LearnerID: fx.learner.ID, AnonymousID: "anon-quiz",
		ArtifactRef: "q", ArtifactURL: "/uploads/q.png", Status: models.SubmissionStatusCorrected,
		Score: &score, MaxScore: &maxScore, SubmittedAt: now,
	}).Error)
	require.NoError(t, db.Create(&models.Submission{
		ItemID: test.ID, LearnerID: fx.learner.ID, AnonymousID: "anon-test",
		ArtifactRef: "t", ArtifactURL: "/uploads/t.pdf", Status: models.SubmissionStatusCorrected,
		Feedback: &feedback, SubmittedAt: now,
	}).Error)

	lesson := models.Lesson{Title: "Reading", TeacherID: fx.teacher.ID, ProgramID: fx.program.ID}
	require.NoError(t, db.Create(&lesson).Error)
	require.NoError(t, db.Create(&models.LessonProgress{
		StudentID: fx.learner.ID, LessonID: lesson.ID, Status: models.LessonProgressInProgress, CurrentPage: 2,
	}).Error)

	svc := NewProgressService(
		repository.NewGuardianRepository(db),
		repository.NewUserRepository(db),
		repository.NewLessonProgressRepository(db),
		repository.NewSubmissionRepository(db),
		nil,
		testLogger(),
	)

	summaries, err := svc.AggregateProgress(ctx, principalOf(fx.guardian))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	require.Len(t, summary.Lessons, 1)
	require.Equal(t, "Reading", summary.Lessons[0].Title)
	require.Equal(t, 2, summary.Lessons[0].CurrentPage)

	require.Len(t, summary.Quizzes, 1)
	require.Equal(t, quiz.ID, summary.Quizzes[0].QuizID)
	require.InDelta(t, 75.0, summary.Quizzes[0].Percentage, 0.001)
	require.Equal(t, dto.Unavailable, summary.Quizzes[0].Difficulty)

	require.Len(t, summary.Tests, 1)
	require.Equal(t, "Nice structure", summary.Tests[0].Feedback)

	reset, err := svc.ResetProgress(ctx, principalOf(fx.guardian))
	require.NoError(t, err)
	require.Equal(t, 1, reset.Dependents)
	require.EqualValues(t, 1, reset.LessonsCleared)
}

func TestLearnerProgressRejectsNonLearner(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)

	svc := NewProgressService(
		repository.NewGuardianRepository(db),
		repository.NewUserRepository(db),
		repository.NewLessonProgressRepository(db),
		repository.NewSubmissionRepository(db),
		nil,
		testLogger(),
	)

	summary, err := svc.LearnerProgress(context.Background(), principalOf(fx.teacher), fx.learner.ID)
	require.NoError(t, err)
	require.Equal(t, fx.learner.EnrollmentNumber, summary.EnrollmentNumber)

	_, err = svc.LearnerProgress(context.Background(), principalOf(fx.teacher), fx.guardian.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestResetProgressClearsOnlyDependents(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)
	outsider := seedUser(t, db, models.UserRoleStudent, &fx.level.ID)

	lesson := models.Lesson{Title: "Phonics", TeacherID: fx.teacher.ID, ProgramID: fx.program.ID}
	require.NoError(t, db.Create(&lesson).Error)
	for _, learnerID := range []uint{fx.learner.ID, outsider.ID} {
		require.NoError(t, db.Create(&models.LessonProgress{
			StudentID: learnerID, LessonID: lesson.ID, Status: models.LessonProgressInProgress, CurrentPage: 2,
		}).Error)
	}

	activity := NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	svc := NewProgressService(
		repository.NewGuardianRepository(db),
		repository.NewUserRepository(db),
		repository.NewLessonProgressRepository(db),
		repository.NewSubmissionRepository(db),
		activity,
		testLogger(),
	)
	ctx := context.Background()

	_, err := svc.ResetProgress(ctx, principalOf(fx.teacher))
	require.ErrorIs(t, err, apperror.ErrForbidden)

	result, err := svc.ResetProgress(ctx, principalOf(fx.guardian))
	require.NoError(t, err)
	require.Equal(t, dto.ProgressResetResponse{Dependents: 1, LessonsCleared: 1}, result)

	summary, err := svc.LearnerProgress(ctx, principalOf(fx.teacher), outsider.ID)
	require.NoError(t, err)
	require.Len(t, summary.Lessons, 1)
	require.Equal(t, 2, summary.Lessons[0].CurrentPage)

	summary, err = svc.LearnerProgress(ctx, principalOf(fx.teacher), fx.learner.ID)
	require.NoError(t, err)
	require.Empty(t, summary.Lessons)
}
