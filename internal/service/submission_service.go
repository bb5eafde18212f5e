package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/correlation"
	"github.com/noah-isme/sekolah-go-api/internal/database"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/events"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/observability"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

var (
	// ErrAlreadySubmitted indicates the learner already has a submission for the item.
	ErrAlreadySubmitted = apperror.Conflict("a submission for this item already exists")
	// ErrSubmissionCorrected indicates a corrected submission can no longer change.
	ErrSubmissionCorrected = apperror.InvalidState("submission has already been corrected")
	// ErrSubmissionNotOwned indicates the submission belongs to another learner.
	ErrSubmissionNotOwned = apperror.Forbidden("submission belongs to another learner")
	// ErrItemNotOwned indicates the item belongs to another teacher.
	ErrItemNotOwned = apperror.Forbidden("item belongs to another teacher")
)

// SubmissionService drives the submission lifecycle and its read models.
type SubmissionService interface {
	Submit(ctx context.Context, principal identity.Principal, itemID uint, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Resubmit(ctx context.Context, principal identity.Principal, id uint, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Withdraw(ctx context.Context, principal identity.Principal, id uint) error
	Correct(ctx context.Context, principal identity.Principal, id uint, req dto.CorrectionRequest, file *multipart.FileHeader) (dto.AnonymousSubmissionResponse, error)
	ClearCorrection(ctx context.Context, principal identity.Principal, id uint) (dto.AnonymousSubmissionResponse, error)
	ListMine(ctx context.Context, principal identity.Principal, kind string) ([]dto.SubmissionResponse, error)
	ListForItem(ctx context.Context, principal identity.Principal, itemID uint) ([]dto.AnonymousSubmissionResponse, error)
	ListForInstructor(ctx context.Context, principal identity.Principal, kind, status string) ([]dto.AnonymousSubmissionResponse, error)
	Export(ctx context.Context, principal identity.Principal, itemID uint) ([]byte, string, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	items       repository.ItemRepository
	users       repository.UserRepository
	artifacts   ArtifactStore
	notifier    Notifier
	publisher   events.Publisher
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
}

// NewSubmissionService constructs the submission lifecycle manager.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	items repository.ItemRepository,
	users repository.UserRepository,
	artifacts ArtifactStore,
	notifier Notifier,
	publisher events.Publisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &submissionService{
		submissions: submissions,
		items:       items,
		users:       users,
		artifacts:   artifacts,
		notifier:    notifier,
		publisher:   publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/sekolah-go-api/internal/service/submission"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func (s *submissionService) Submit(ctx context.Context, principal identity.Principal, itemID uint, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	learner, err := authorize(principal, identity.CapSubmitWork)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "submissions.submit", trace.WithAttributes(
		attribute.Int64("submission.item_id", int64(itemID)),
		attribute.Int64("submission.learner_id", int64(learner.UserID)),
	))
	defer span.End()

	item, err := s.itemForLearner(ctx, learner.UserID, itemID)
	if err != nil {
		span.SetStatus(codes.Error, "item not available")
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.submissions.FindByLearnerAndItem(ctx, learner.UserID, item.ID); err == nil {
		return dto.SubmissionResponse{}, ErrAlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}

	artifact, err := s.artifacts.Store(ctx, file, PolicySubmission, uintPtr(learner.UserID))
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		ItemID:      item.ID,
		LearnerID:   learner.UserID,
		AnonymousID: s.newID(),
		ArtifactRef: artifact.Ref,
		ArtifactURL: artifact.URL,
		Status:      models.SubmissionStatusSubmitted,
		SubmittedAt: s.now().UTC(),
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		discardArtifact(ctx, s.artifacts, s.logger, artifact.Ref)
		if database.IsUniqueViolation(err) {
			return dto.SubmissionResponse{}, ErrAlreadySubmitted
		}
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	submission.Item = &item

	s.emit(ctx, events.EventItemSubmitted, &submission, item, learner.UserID)

	span.SetStatus(codes.Ok, "submitted")
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Resubmit(ctx context.Context, principal identity.Principal, id uint, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	learner, err := authorize(principal, identity.CapSubmitWork)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "submissions.resubmit", trace.WithAttributes(
		attribute.Int64("submission.id", int64(id)),
	))
	defer span.End()

	submission, err := s.learnerSubmission(ctx, learner.UserID, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if submission.IsCorrected() {
		return dto.SubmissionResponse{}, ErrSubmissionCorrected
	}

	artifact, err := s.artifacts.Store(ctx, file, PolicySubmission, uintPtr(learner.UserID))
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	staleArtifact := submission.ArtifactRef
	staleCorrection := stringValue(submission.CorrectionRef)

	submission.ArtifactRef = artifact.Ref
	submission.ArtifactURL = artifact.URL
	submission.Status = models.SubmissionStatusSubmitted
	submission.SubmittedAt = s.now().UTC()
	resetCorrection(&submission)

	if err := s.submissions.UpdateWork(ctx, &submission); err != nil {
		discardArtifact(ctx, s.artifacts, s.logger, artifact.Ref)
		span.RecordError(err)
		return dto.SubmissionResponse{}, s.learnerWriteError(ctx, submission.ID, err)
	}

	discardArtifact(ctx, s.artifacts, s.logger, staleArtifact)
	discardArtifact(ctx, s.artifacts, s.logger, staleCorrection)

	item := derefItem(submission.Item)
	s.emit(ctx, events.EventItemResubmitted, &submission, item, learner.UserID)

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Withdraw(ctx context.Context, principal identity.Principal, id uint) error {
	learner, err := authorize(principal, identity.CapSubmitWork)
	if err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "submissions.withdraw", trace.WithAttributes(
		attribute.Int64("submission.id", int64(id)),
	))
	defer span.End()

	submission, err := s.learnerSubmission(ctx, learner.UserID, id)
	if err != nil {
		return err
	}
	if submission.IsCorrected() {
		return ErrSubmissionCorrected
	}

	if err := s.submissions.DeleteUncorrected(ctx, submission.ID); err != nil {
		span.RecordError(err)
		return s.learnerWriteError(ctx, submission.ID, err)
	}

	discardArtifact(ctx, s.artifacts, s.logger, submission.ArtifactRef)
	discardArtifact(ctx, s.artifacts, s.logger, stringValue(submission.CorrectionRef))

	item := derefItem(submission.Item)
	s.emit(ctx, events.EventItemWithdrawn, &submission, item, learner.UserID)
	return nil
}

func (s *submissionService) Correct(ctx context.Context, principal identity.Principal, id uint, req dto.CorrectionRequest, file *multipart.FileHeader) (dto.AnonymousSubmissionResponse, error) {
	teacher, err := authorize(principal, identity.CapCorrectWork)
	if err != nil {
		return dto.AnonymousSubmissionResponse{}, err
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validator.Struct(req); err != nil {
		return dto.AnonymousSubmissionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "submissions.correct", trace.WithAttributes(
		attribute.Int64("submission.id", int64(id)),
		attribute.String("submission.status", req.Status),
	))
	defer span.End()

	submission, err := s.instructorSubmission(ctx, teacher.UserID, id)
	if err != nil {
		return dto.AnonymousSubmissionResponse{}, err
	}
	item := derefItem(submission.Item)
	wasCorrected := submission.IsCorrected()

	if req.Score != nil || req.MaxScore != nil {
		if item.Kind != models.ItemKindQuiz {
			return dto.AnonymousSubmissionResponse{}, apperror.Validation("scores apply to quizzes only")
		}
		if req.Score != nil && req.MaxScore != nil && *req.Score > *req.MaxScore {
			return dto.AnonymousSubmissionResponse{}, apperror.Validation("score cannot exceed max score")
		}
	}

	staleCorrection := ""
	newCorrection := ""
	if file != nil {
		artifact, err := s.artifacts.Store(ctx, file, PolicyCorrection, uintPtr(teacher.UserID))
		if err != nil {
			span.RecordError(err)
			return dto.AnonymousSubmissionResponse{}, err
		}
		staleCorrection = stringValue(submission.CorrectionRef)
		newCorrection = artifact.Ref
		submission.CorrectionRef = &artifact.Ref
		submission.CorrectionURL = &artifact.URL
	}

	if req.Feedback != nil {
		feedback := strings.TrimSpace(*req.Feedback)
		if feedback == "" {
			submission.Feedback = nil
		} else {
			submission.Feedback = &feedback
		}
	}
	if req.Score != nil {
		submission.Score = req.Score
	}
	if req.MaxScore != nil {
		submission.MaxScore = req.MaxScore
	}

	submission.Status = req.Status
	if req.Status == models.SubmissionStatusCorrected {
		correctedAt := s.now().UTC()
		submission.CorrectedAt = &correctedAt
	} else {
		submission.CorrectedAt = nil
	}

	if err := s.submissions.UpdateReview(ctx, &submission); err != nil {
		discardArtifact(ctx, s.artifacts, s.logger, newCorrection)
		span.RecordError(err)
		return dto.AnonymousSubmissionResponse{}, translateRepoError(err, "submission not found")
	}
	discardArtifact(ctx, s.artifacts, s.logger, staleCorrection)

	// Only the transition into corrected reaches the learner.
	if !wasCorrected && submission.IsCorrected() {
		s.emit(ctx, events.EventItemCorrected, &submission, item, teacher.UserID)
	}

	return dto.NewAnonymousSubmissionResponse(submission), nil
}

func (s *submissionService) ClearCorrection(ctx context.Context, principal identity.Principal, id uint) (dto.AnonymousSubmissionResponse, error) {
	teacher, err := authorize(principal, identity.CapCorrectWork)
	if err != nil {
		return dto.AnonymousSubmissionResponse{}, err
	}

	submission, err := s.instructorSubmission(ctx, teacher.UserID, id)
	if err != nil {
		return dto.AnonymousSubmissionResponse{}, err
	}

	staleCorrection := stringValue(submission.CorrectionRef)
	resetCorrection(&submission)
	submission.Status = models.SubmissionStatusSubmitted

	if err := s.submissions.UpdateReview(ctx, &submission); err != nil {
		return dto.AnonymousSubmissionResponse{}, translateRepoError(err, "submission not found")
	}
	discardArtifact(ctx, s.artifacts, s.logger, staleCorrection)

	return dto.NewAnonymousSubmissionResponse(submission), nil
}

func (s *submissionService) ListMine(ctx context.Context, principal identity.Principal, kind string) ([]dto.SubmissionResponse, error) {
	learner, err := authorize(principal, identity.CapSubmitWork)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		LearnerID: uintPtr(learner.UserID),
		Kind:      normalizeKind(kind),
	})
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) ListForItem(ctx context.Context, principal identity.Principal, itemID uint) ([]dto.AnonymousSubmissionResponse, error) {
	teacher, err := authorize(principal, identity.CapCorrectWork)
	if err != nil {
		return nil, err
	}

	item, err := s.ownedItem(ctx, teacher.UserID, itemID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{ItemID: uintPtr(item.ID)})
	if err != nil {
		return nil, err
	}
	return dto.NewAnonymousSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) ListForInstructor(ctx context.Context, principal identity.Principal, kind, status string) ([]dto.AnonymousSubmissionResponse, error) {
	teacher, err := authorize(principal, identity.CapCorrectWork)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		TeacherID: uintPtr(teacher.UserID),
		Kind:      normalizeKind(kind),
		Status:    strings.ToLower(strings.TrimSpace(status)),
	})
	if err != nil {
		return nil, err
	}
	return dto.NewAnonymousSubmissionResponseSlice(submissions), nil
}

// itemForLearner loads the item and hides it when it targets another cohort.
func (s *submissionService) itemForLearner(ctx context.Context, learnerID, itemID uint) (models.AssignableItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return models.AssignableItem{}, translateRepoError(err, "item not found")
	}

	learner, err := s.users.GetByID(ctx, learnerID)
	if err != nil {
		return models.AssignableItem{}, translateRepoError(err, "learner not found")
	}

	if learner.LevelID == nil || item.LevelID() == 0 || *learner.LevelID != item.LevelID() {
		return models.AssignableItem{}, apperror.NotFound("item not found")
	}
	return item, nil
}

func (s *submissionService) learnerSubmission(ctx context.Context, learnerID, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return models.Submission{}, translateRepoError(err, "submission not found")
	}
	if submission.LearnerID != learnerID {
		return models.Submission{}, ErrSubmissionNotOwned
	}
	return submission, nil
}

func (s *submissionService) instructorSubmission(ctx context.Context, teacherID, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return models.Submission{}, translateRepoError(err, "submission not found")
	}
	if submission.Item == nil {
		return models.Submission{}, apperror.NotFound("item not found")
	}
	if submission.Item.TeacherID != teacherID {
		return models.Submission{}, ErrItemNotOwned
	}
	return submission, nil
}

func (s *submissionService) ownedItem(ctx context.Context, teacherID, itemID uint) (models.AssignableItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return models.AssignableItem{}, translateRepoError(err, "item not found")
	}
	if item.TeacherID != teacherID {
		return models.AssignableItem{}, ErrItemNotOwned
	}
	return item, nil
}

// learnerWriteError maps a refused conditional write to the state that
// refused it: corrected if the row still exists, not found otherwise.
func (s *submissionService) learnerWriteError(ctx context.Context, id uint, err error) error {
	if !errors.Is(err, repository.ErrSubmissionLocked) {
		return translateRepoError(err, "submission not found")
	}
	if _, lookupErr := s.submissions.GetByID(ctx, id); lookupErr != nil {
		return translateRepoError(lookupErr, "submission not found")
	}
	return ErrSubmissionCorrected
}

// emit fans the event out to recipients and the event bus. Both are best-effort.
func (s *submissionService) emit(ctx context.Context, eventType events.SubmissionEventType, submission *models.Submission, item models.AssignableItem, actorID uint) {
	observability.SubmissionEvents().WithLabelValues(string(eventType)).Inc()

	delivered := 0
	if s.notifier != nil {
		delivered = s.notifier.Notify(ctx, eventType, submission, item)
	}

	publishEvent(ctx, s.publisher, s.logger, eventType, submission, item, actorID, delivered, s.now())
}

func publishEvent(ctx context.Context, publisher events.Publisher, logger zerolog.Logger, eventType events.SubmissionEventType, submission *models.Submission, item models.AssignableItem, actorID uint, recipients int, now time.Time) {
	if publisher == nil {
		return
	}

	event := events.SubmissionEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		ItemID:        item.ID,
		ItemKind:      item.Kind,
		ActorID:       actorID,
		Recipients:    recipients,
		CorrelationID: correlation.FromContext(ctx),
		Timestamp:     now.UTC(),
	}
	if submission != nil {
		event.SubmissionID = uintPtr(submission.ID)
		event.AnonymousID = submission.AnonymousID
	}

	if err := publisher.PublishSubmissionEvent(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event_type", string(eventType)).Uint("item_id", item.ID).Msg("failed to publish submission event")
	}
}

func resetCorrection(submission *models.Submission) {
	submission.Feedback = nil
	submission.CorrectionRef = nil
	submission.CorrectionURL = nil
	submission.CorrectedAt = nil
	submission.Score = nil
	submission.MaxScore = nil
}

func derefItem(item *models.AssignableItem) models.AssignableItem {
	if item == nil {
		return models.AssignableItem{}
	}
	return *item
}

func normalizeKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case models.ItemKindTest, models.ItemKindQuiz:
		return kind
	default:
		return ""
	}
}
