package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/events"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

// Notifier turns lifecycle events into per-recipient notifications.
type Notifier interface {
	Notify(ctx context.Context, event events.SubmissionEventType, submission *models.Submission, item models.AssignableItem) int
}

// Delivery stores and streams a batch of notifications.
type Delivery interface {
	Deliver(ctx context.Context, notifications []models.Notification) int
}

type fanoutNotifier struct {
	guardians repository.GuardianRepository
	users     repository.UserRepository
	delivery  Delivery
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

type recipient struct {
	id       uint
	guardian bool
}

// NewNotifier constructs the fan-out engine.
func NewNotifier(guardians repository.GuardianRepository, users repository.UserRepository, delivery Delivery, logger zerolog.Logger) Notifier {
	return &fanoutNotifier{
		guardians: guardians,
		users:     users,
		delivery:  delivery,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify resolves recipients for the event and delivers one notification to
// each. Errors never reach the caller; the delivered count is returned.
func (n *fanoutNotifier) Notify(ctx context.Context, event events.SubmissionEventType, submission *models.Submission, item models.AssignableItem) int {
	recipients, err := n.recipients(ctx, event, submission, item)
	if err != nil {
		n.logger.Warn().Err(err).Str("event", string(event)).Uint("item_id", item.ID).Msg("failed to resolve notification recipients")
		return 0
	}
	if len(recipients) == 0 {
		return 0
	}

	title := strings.TrimSpace(n.sanitizer.Sanitize(item.Title))
	if title == "" {
		title = "untitled"
	}

	related := item.ID
	relatedKind := item.Kind
	if submission != nil && event != events.EventItemWithdrawn {
		related = submission.ID
		relatedKind = "submission"
	}

	notifications := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		notifications = append(notifications, models.Notification{
			RecipientID: r.id,
			Type:        string(event),
			Message:     renderMessage(event, item.Kind, title, submission, r.guardian),
			RelatedID:   uintPtr(related),
			RelatedKind: relatedKind,
		})
	}

	return n.delivery.Deliver(ctx, notifications)
}

func (n *fanoutNotifier) recipients(ctx context.Context, event events.SubmissionEventType, submission *models.Submission, item models.AssignableItem) ([]recipient, error) {
	switch event {
	case events.EventItemSubmitted, events.EventItemResubmitted, events.EventItemWithdrawn:
		if submission == nil {
			return nil, fmt.Errorf("event %s requires a submission", event)
		}
		guardianIDs, err := n.guardians.ListGuardianIDs(ctx, submission.LearnerID)
		if err != nil {
			return nil, err
		}
		out := make([]recipient, 0, len(guardianIDs)+1)
		seen := make(map[uint]struct{}, len(guardianIDs)+1)
		for _, id := range guardianIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, recipient{id: id, guardian: true})
		}
		if _, dup := seen[item.TeacherID]; !dup && item.TeacherID != 0 {
			out = append(out, recipient{id: item.TeacherID})
		}
		return out, nil
	case events.EventItemCorrected:
		if submission == nil {
			return nil, fmt.Errorf("event %s requires a submission", event)
		}
		return []recipient{{id: submission.LearnerID}}, nil
	case events.EventItemPublished:
		levelID := item.LevelID()
		if levelID == 0 {
			return nil, fmt.Errorf("item %d has no cohort", item.ID)
		}
		ids, err := n.users.ListLearnerIDsByLevel(ctx, levelID)
		if err != nil {
			return nil, err
		}
		out := make([]recipient, 0, len(ids))
		for _, id := range ids {
			out = append(out, recipient{id: id})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown event %q", event)
	}
}

func renderMessage(event events.SubmissionEventType, kind, title string, submission *models.Submission, guardian bool) string {
	subject := "A learner"
	if guardian {
		subject = "Your dependent"
	} else if submission != nil && submission.AnonymousID != "" {
		subject = "Learner " + submission.AnonymousID
	}

	switch event {
	case events.EventItemSubmitted:
		return fmt.Sprintf("%s submitted the %s %q.", subject, kind, title)
	case events.EventItemResubmitted:
		return fmt.Sprintf("%s resubmitted the %s %q.", subject, kind, title)
	case events.EventItemWithdrawn:
		return fmt.Sprintf("%s withdrew their submission for the %s %q.", subject, kind, title)
	case events.EventItemCorrected:
		return fmt.Sprintf("Your submission for the %s %q has been corrected.", kind, title)
	case events.EventItemPublished:
		return fmt.Sprintf("A new %s %q is available.", kind, title)
	default:
		return title
	}
}
