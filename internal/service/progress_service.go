package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

const (
	noFeedback    = "no feedback"
	unknownStatus = "unknown"
)

// ProgressService aggregates learner progress for guardians and instructors.
type ProgressService interface {
	AggregateProgress(ctx context.Context, principal identity.Principal) ([]dto.DependentSummary, error)
	LearnerProgress(ctx context.Context, principal identity.Principal, learnerID uint) (dto.DependentSummary, error)
	ResetProgress(ctx context.Context, principal identity.Principal) (dto.ProgressResetResponse, error)
}

type progressService struct {
	guardians   repository.GuardianRepository
	users       repository.UserRepository
	progress    repository.LessonProgressRepository
	submissions repository.SubmissionRepository
	activity    ActivityRecorder
	logger      zerolog.Logger
}

// NewProgressService constructs the progress aggregator.
func NewProgressService(
	guardians repository.GuardianRepository,
	users repository.UserRepository,
	progress repository.LessonProgressRepository,
	submissions repository.SubmissionRepository,
	activity ActivityRecorder,
	logger zerolog.Logger,
) ProgressService {
	return &progressService{
		guardians:   guardians,
		users:       users,
		progress:    progress,
		submissions: submissions,
		activity:    activity,
		logger:      logger.With().Str("component", "progress_service").Logger(),
	}
}

// AggregateProgress summarises every dependent of the calling guardian. A
// guardian without dependents gets an empty list.
func (s *progressService) AggregateProgress(ctx context.Context, principal identity.Principal) ([]dto.DependentSummary, error) {
	guardian, err := authorize(principal, identity.CapViewDependents)
	if err != nil {
		return nil, err
	}

	dependents, err := s.guardians.ListDependents(ctx, guardian.UserID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.DependentSummary, 0, len(dependents))
	for _, dependent := range dependents {
		summary, err := s.summarise(ctx, dependent)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *progressService) LearnerProgress(ctx context.Context, principal identity.Principal, learnerID uint) (dto.DependentSummary, error) {
	if _, err := authorize(principal, identity.CapViewLearnerProgress); err != nil {
		return dto.DependentSummary{}, err
	}

	learner, err := s.users.GetByID(ctx, learnerID)
	if err != nil {
		return dto.DependentSummary{}, translateRepoError(err, "learner not found")
	}
	if learner.Role != models.UserRoleStudent {
		return dto.DependentSummary{}, apperror.NotFound("learner not found")
	}

	return s.summarise(ctx, learner)
}

// ResetProgress clears the lesson progress of every dependent of the guardian.
func (s *progressService) ResetProgress(ctx context.Context, principal identity.Principal) (dto.ProgressResetResponse, error) {
	guardian, err := authorize(principal, identity.CapViewDependents)
	if err != nil {
		return dto.ProgressResetResponse{}, err
	}

	dependents, err := s.guardians.ListDependents(ctx, guardian.UserID)
	if err != nil {
		return dto.ProgressResetResponse{}, err
	}

	var cleared int64
	for _, dependent := range dependents {
		count, err := s.progress.DeleteByStudent(ctx, dependent.ID)
		if err != nil {
			return dto.ProgressResetResponse{}, err
		}
		cleared += count
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      guardian,
		Action:     "progress.reset",
		EntityType: "user",
		EntityID:   uintPtr(guardian.UserID),
		Metadata:   map[string]interface{}{"dependents": len(dependents), "cleared": cleared},
	})

	return dto.ProgressResetResponse{Dependents: len(dependents), LessonsCleared: cleared}, nil
}

func (s *progressService) summarise(ctx context.Context, learner models.User) (dto.DependentSummary, error) {
	summary := dto.DependentSummary{
		LearnerID:        learner.ID,
		FirstName:        orUnavailable(learner.FirstName),
		LastName:         orUnavailable(learner.LastName),
		Level:            dto.Unavailable,
		EnrollmentNumber: orUnavailable(learner.EnrollmentNumber),
		Lessons:          []dto.LessonSummary{},
		Quizzes:          []dto.QuizSummary{},
		Tests:            []dto.TestSummary{},
	}
	if learner.Level != nil && learner.Level.Name != "" {
		summary.Level = learner.Level.Name
	}

	progress, err := s.progress.ListByStudent(ctx, learner.ID)
	if err != nil {
		return dto.DependentSummary{}, err
	}
	for _, row := range progress {
		entry := dto.LessonSummary{
			LessonID:    row.LessonID,
			Title:       dto.Unavailable,
			Status:      row.Status,
			CurrentPage: row.CurrentPage,
			CompletedAt: row.CompletedAt,
		}
		if row.Lesson != nil && row.Lesson.Title != "" {
			entry.Title = row.Lesson.Title
		}
		if entry.Status == "" {
			entry.Status = unknownStatus
		}
		summary.Lessons = append(summary.Lessons, entry)
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{LearnerID: uintPtr(learner.ID)})
	if err != nil {
		return dto.DependentSummary{}, err
	}
	for _, submission := range submissions {
		if submission.Item != nil && submission.Item.Kind == models.ItemKindQuiz {
			summary.Quizzes = append(summary.Quizzes, quizSummary(submission))
			continue
		}
		summary.Tests = append(summary.Tests, testSummary(submission))
	}

	return summary, nil
}

func quizSummary(submission models.Submission) dto.QuizSummary {
	entry := dto.QuizSummary{
		QuizID:      submission.ItemID,
		Title:       dto.Unavailable,
		Difficulty:  dto.Unavailable,
		Status:      submission.Status,
		SubmittedAt: submission.SubmittedAt,
	}
	if submission.Item != nil {
		entry.Title = orUnavailable(submission.Item.Title)
		entry.Difficulty = orUnavailable(submission.Item.Difficulty)
	}
	if submission.Score != nil {
		entry.Score = *submission.Score
	}
	if submission.MaxScore != nil {
		entry.Total = *submission.MaxScore
	}
	if percentage := submission.Percentage(); percentage != nil {
		entry.Percentage = *percentage
	}
	return entry
}

func testSummary(submission models.Submission) dto.TestSummary {
	entry := dto.TestSummary{
		TestID:      submission.ItemID,
		Title:       dto.Unavailable,
		Status:      submission.Status,
		Feedback:    noFeedback,
		SubmittedAt: submission.SubmittedAt,
	}
	if submission.Item != nil {
		entry.Title = orUnavailable(submission.Item.Title)
	}
	if feedback := stringValue(submission.Feedback); feedback != "" {
		entry.Feedback = feedback
	}
	return entry
}

func orUnavailable(value string) string {
	if value == "" {
		return dto.Unavailable
	}
	return value
}
