package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/events"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

// flakyNotificationRepo fails bulk inserts and rejects one recipient.
type flakyNotificationRepo struct {
	repository.NotificationRepository
	rejectRecipient uint
	nextID          uint
	stored          []models.Notification
}

func (r *flakyNotificationRepo) CreateBatch(context.Context, []models.Notification) error {
	return errors.New("bulk insert unavailable")
}

func (r *flakyNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	if notification.RecipientID == r.rejectRecipient {
		return errors.New("recipient row rejected")
	}
	r.nextID++
	notification.ID = r.nextID
	r.stored = append(r.stored, *notification)
	return nil
}

func TestDeliverFallsBackToSingleInserts(t *testing.T) {
	repo := &flakyNotificationRepo{rejectRecipient: 2}
	svc := NewNotificationService(repo, nil, "", nil, testLogger())

	stream, cancel := svc.Subscribe(3)
	defer cancel()

	delivered := svc.Deliver(context.Background(), []models.Notification{
		{RecipientID: 1, Type: string(events.EventItemSubmitted), Message: "one"},
		{RecipientID: 2, Type: string(events.EventItemSubmitted), Message: "two"},
		{RecipientID: 3, Type: string(events.EventItemSubmitted), Message: "three"},
	})

	require.Equal(t, 2, delivered)
	require.Len(t, repo.stored, 2)
	require.Equal(t, uint(1), repo.stored[0].RecipientID)
	require.Equal(t, uint(3), repo.stored[1].RecipientID)

	select {
	case got := <-stream:
		require.Equal(t, "three", got.Message)
		require.Equal(t, uint(3), got.RecipientID)
	case <-time.After(time.Second):
		t.Fatal("expected live notification for subscriber")
	}
}

func TestDeliverEmptyBatch(t *testing.T) {
	svc := NewNotificationService(&flakyNotificationRepo{}, nil, "", nil, testLogger())
	require.Zero(t, svc.Deliver(context.Background(), nil))
}

func TestNotificationInboxIsScopedToRecipient(t *testing.T) {
	db := setupServiceDB(t)
	owner := seedUser(t, db, models.UserRoleStudent, nil)
	stranger := seedUser(t, db, models.UserRoleParent, nil)
	ctx := context.Background()

	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, testLogger())
	require.Equal(t, 2, svc.Deliver(ctx, []models.Notification{
		{RecipientID: owner.ID, Type: string(events.EventItemCorrected), Message: "corrected"},
		{RecipientID: owner.ID, Type: string(events.EventItemPublished), Message: "published"},
	}))

	unread, err := svc.UnreadCount(ctx, principalOf(owner))
	require.NoError(t, err)
	require.EqualValues(t, 2, unread)

	inbox, err := svc.List(ctx, principalOf(owner), 10, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)

	_, err = svc.MarkRead(ctx, principalOf(stranger), inbox[0].ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	read, err := svc.MarkRead(ctx, principalOf(owner), inbox[0].ID)
	require.NoError(t, err)
	require.True(t, read.Read)

	unread, err = svc.UnreadCount(ctx, principalOf(owner))
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)

	require.NoError(t, svc.Delete(ctx, principalOf(owner), inbox[0].ID))
	removed, err := svc.DeleteAll(ctx, principalOf(owner))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}

func TestPublishedItemReachesWholeCohort(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)
	classmate := seedUser(t, db, models.UserRoleStudent, &fx.level.ID)
	outsider := seedSchool(t, db).learner

	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, testLogger())
	notifier := NewNotifier(repository.NewGuardianRepository(db), repository.NewUserRepository(db), notifications, testLogger())

	item := seedItem(t, db, fx.teacher.ID, fx.program.ID, models.ItemKindQuiz, "<b>Shapes</b>")
	program := fx.program
	item.Program = &program

	delivered := notifier.Notify(context.Background(), events.EventItemPublished, nil, item)
	require.Equal(t, 2, delivered)

	inbox := notificationsFor(t, db, classmate.ID)
	require.Len(t, inbox, 1)
	require.Equal(t, `A new quiz "Shapes" is available.`, inbox[0].Message)
	require.Equal(t, models.ItemKindQuiz, inbox[0].RelatedKind)
	require.Empty(t, notificationsFor(t, db, outsider.ID))
	require.Empty(t, notificationsFor(t, db, fx.teacher.ID))
}
