package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/database"
	"github.com/noah-isme/sekolah-go-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role string, levelID *uint) models.User {
	t.Helper()
	user := models.User{
		FirstName:    "User",
		LastName:     role,
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		Status:       models.UserStatusApproved,
		LevelID:      levelID,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProgram(t *testing.T, db *gorm.DB, name string) (models.Level, models.Program) {
	t.Helper()
	level := models.Level{Name: name}
	require.NoError(t, db.Create(&level).Error)
	program := models.Program{Title: name + " program", LevelID: level.ID}
	require.NoError(t, db.Create(&program).Error)
	return level, program
}

func seedItem(t *testing.T, db *gorm.DB, teacherID, programID uint, kind string) models.AssignableItem {
	t.Helper()
	item := models.AssignableItem{Kind: kind, Title: "Fractions", TeacherID: teacherID, ProgramID: programID}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func seedSubmission(t *testing.T, db *gorm.DB, itemID, learnerID uint) models.Submission {
	t.Helper()
	submission := models.Submission{
		ItemID:      itemID,
		LearnerID:   learnerID,
		AnonymousID: uuid.NewString(),
		ArtifactRef: "ref-" + uuid.NewString(),
		ArtifactURL: "/uploads/a.pdf",
		Status:      models.SubmissionStatusSubmitted,
		SubmittedAt: time.Now(),
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func TestUserRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	level, _ := seedProgram(t, db, "CE1")
	pending := models.User{FirstName: "Alice", LastName: "Martin", Email: "ALICE@example.com", PasswordHash: "x", Role: models.UserRoleStudent, Status: models.UserStatusPending, LevelID: &level.ID}
	require.NoError(t, repo.Create(ctx, &pending))
	seedUser(t, db, models.UserRoleTeacher, nil)

	found, err := repo.GetByEmail(ctx, " alice@EXAMPLE.com ")
	require.NoError(t, err)
	require.Equal(t, pending.ID, found.ID)

	users, total, err := repo.List(ctx, UserFilter{Search: "mart", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, users, 1)

	users, total, err = repo.List(ctx, UserFilter{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, users, 1)

	ids, err := repo.ListLearnerIDsByLevel(ctx, level.ID)
	require.NoError(t, err)
	require.Empty(t, ids, "pending learners are not part of the cohort")

	approved, err := repo.UpdateStatus(ctx, pending.ID, models.UserStatusApproved)
	require.NoError(t, err)
	require.True(t, approved.IsApproved())

	ids, err = repo.ListLearnerIDsByLevel(ctx, level.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{pending.ID}, ids)

	_, err = repo.UpdateStatus(ctx, 9999, models.UserStatusApproved)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGuardianRepositoryLinks(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGuardianRepository(db)
	ctx := context.Background()

	guardian := seedUser(t, db, models.UserRoleParent, nil)
	second := seedUser(t, db, models.UserRoleParent, nil)
	child := seedUser(t, db, models.UserRoleStudent, nil)

	require.NoError(t, repo.Link(ctx, guardian.ID, child.ID))
	require.NoError(t, repo.Link(ctx, second.ID, child.ID))
	require.True(t, database.IsUniqueViolation(repo.Link(ctx, guardian.ID, child.ID)))

	ok, err := repo.IsGuardianOf(ctx, guardian.ID, child.ID)
	require.NoError(t, err)
	require.True(t, ok)

	dependents, err := repo.ListDependents(ctx, guardian.ID)
	require.NoError(t, err)
	require.Len(t, dependents, 1)
	require.Equal(t, child.ID, dependents[0].ID)

	guardians, err := repo.ListGuardianIDs(ctx, child.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{guardian.ID, second.ID}, guardians)

	require.NoError(t, repo.Unlink(ctx, guardian.ID, child.ID))
	require.ErrorIs(t, repo.Unlink(ctx, guardian.ID, child.ID), gorm.ErrRecordNotFound)
}

func TestItemRepositoryListByLevelAndDeleteCascade(t *testing.T) {
	db := setupTestDB(t)
	items := NewItemRepository(db)
	submissions := NewSubmissionRepository(db)
	ctx := context.Background()

	level, program := seedProgram(t, db, "CM2")
	_, otherProgram := seedProgram(t, db, "CP")
	teacher := seedUser(t, db, models.UserRoleTeacher, nil)
	learner := seedUser(t, db, models.UserRoleStudent, &level.ID)

	quiz := seedItem(t, db, teacher.ID, program.ID, models.ItemKindQuiz)
	seedItem(t, db, teacher.ID, otherProgram.ID, models.ItemKindTest)

	listed, err := items.List(ctx, ItemFilter{LevelID: &level.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, level.ID, listed[0].LevelID())

	submission := seedSubmission(t, db, quiz.ID, learner.ID)

	removed, err := items.DeleteCascade(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	require.Equal(t, submission.ArtifactRef, removed[0].ArtifactRef)

	_, err = submissions.GetByID(ctx, submission.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = items.DeleteCascade(ctx, quiz.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	level, program := seedProgram(t, db, "CE2")
	teacher := seedUser(t, db, models.UserRoleTeacher, nil)
	otherTeacher := seedUser(t, db, models.UserRoleTeacher, nil)
	learner := seedUser(t, db, models.UserRoleStudent, &level.ID)

	test := seedItem(t, db, teacher.ID, program.ID, models.ItemKindTest)
	quiz := seedItem(t, db, otherTeacher.ID, program.ID, models.ItemKindQuiz)
	seedSubmission(t, db, test.ID, learner.ID)
	seedSubmission(t, db, quiz.ID, learner.ID)

	mine, err := repo.List(ctx, SubmissionFilter{LearnerID: &learner.ID, Kind: models.ItemKindQuiz})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Item)
	require.Equal(t, quiz.ID, mine[0].Item.ID)

	owned, err := repo.List(ctx, SubmissionFilter{TeacherID: &teacher.ID})
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.Equal(t, test.ID, owned[0].ItemID)

	found, err := repo.FindByLearnerAndItem(ctx, learner.ID, test.ID)
	require.NoError(t, err)

	loaded, err := repo.GetByID(ctx, found.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Item)
	require.NotNil(t, loaded.Item.Program)
	require.Equal(t, level.ID, loaded.Item.LevelID())
}

func TestSubmissionRepositoryLearnerWritesSkipCorrectedRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	level, program := seedProgram(t, db, "CM2")
	teacher := seedUser(t, db, models.UserRoleTeacher, nil)
	learner := seedUser(t, db, models.UserRoleStudent, &level.ID)
	item := seedItem(t, db, teacher.ID, program.ID, models.ItemKindTest)
	stored := seedSubmission(t, db, item.ID, learner.ID)

	stale := stored
	feedback := "Good work"
	stored.Status = models.SubmissionStatusCorrected
	stored.Feedback = &feedback
	stored.ArtifactRef = "must-not-be-written"
	require.NoError(t, repo.UpdateReview(ctx, &stored))

	stale.ArtifactRef = "ref-resubmitted"
	stale.ArtifactURL = "/uploads/b.pdf"
	require.ErrorIs(t, repo.UpdateWork(ctx, &stale), ErrSubmissionLocked)
	require.ErrorIs(t, repo.DeleteUncorrected(ctx, stale.ID), ErrSubmissionLocked)

	loaded, err := repo.GetByID(ctx, stored.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusCorrected, loaded.Status)
	require.NotNil(t, loaded.Feedback)
	require.Equal(t, "Good work", *loaded.Feedback)
	require.Equal(t, stale.ID, loaded.ID)
	require.NotEqual(t, "must-not-be-written", loaded.ArtifactRef)
	require.NotEqual(t, "ref-resubmitted", loaded.ArtifactRef)

	other := seedSubmission(t, db, seedItem(t, db, teacher.ID, program.ID, models.ItemKindQuiz).ID, learner.ID)
	other.ArtifactRef = "ref-second"
	require.NoError(t, repo.UpdateWork(ctx, &other))
	require.NoError(t, repo.DeleteUncorrected(ctx, other.ID))
	require.ErrorIs(t, repo.DeleteUncorrected(ctx, other.ID), ErrSubmissionLocked)

	missing := models.Submission{ID: other.ID, Status: models.SubmissionStatusRejected}
	require.ErrorIs(t, repo.UpdateReview(ctx, &missing), gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryFindByLearnerAndItemMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	_, err := repo.FindByLearnerAndItem(context.Background(), 404, 405)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestNotificationRepositoryBatchAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	batch := []models.Notification{
		{RecipientID: 1, Type: "item_submitted", Message: "first"},
		{RecipientID: 1, Type: "item_submitted", Message: "second"},
		{RecipientID: 2, Type: "item_submitted", Message: "other"},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))
	require.NoError(t, repo.CreateBatch(ctx, nil))

	list, err := repo.ListByRecipient(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	unread, err := repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), unread)

	read, err := repo.MarkRead(ctx, list[0].ID, 1)
	require.NoError(t, err)
	require.True(t, read.Read)

	_, err = repo.MarkRead(ctx, list[0].ID, 2)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.ErrorIs(t, repo.Delete(ctx, list[0].ID, 2), gorm.ErrRecordNotFound)
	require.NoError(t, repo.Delete(ctx, list[0].ID, 1))

	removed, err := repo.DeleteAll(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	remaining, err := repo.ListByRecipient(ctx, 2, 10, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestMessageRepositoryConversationAndUnreadSenders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, models.UserRoleTeacher, nil)
	bob := seedUser(t, db, models.UserRoleParent, nil)
	carol := seedUser(t, db, models.UserRoleStudent, nil)

	base := time.Now().Add(-time.Hour)
	for i, msg := range []models.Message{
		{SenderID: alice.ID, RecipientID: bob.ID, ConversationID: "c1", Content: "one", FileKind: models.MessageKindText},
		{SenderID: alice.ID, RecipientID: bob.ID, ConversationID: "c1", Content: "two", FileKind: models.MessageKindText},
		{SenderID: carol.ID, RecipientID: bob.ID, ConversationID: "c2", Content: "hey", FileKind: models.MessageKindText},
	} {
		msg.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, &msg))
	}

	conversation, err := repo.ListByConversation(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, conversation, 2)
	require.Equal(t, "one", conversation[0].Content)
	require.Equal(t, "two", conversation[1].Content)
	require.NotNil(t, conversation[0].Sender)

	senders, err := repo.UnreadSenders(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, senders, 2)
	require.Equal(t, alice.ID, senders[0].SenderID)
	require.Equal(t, int64(2), senders[0].Count)
	require.Equal(t, models.UserRoleTeacher, senders[0].Role)

	updated, err := repo.MarkConversationRead(ctx, "c1", bob.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated)

	senders, err = repo.UnreadSenders(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, senders, 1)
	require.Equal(t, carol.ID, senders[0].SenderID)
}

func TestLessonProgressRepositoryUpsert(t *testing.T) {
	db := setupTestDB(t)
	lessons := NewLessonRepository(db)
	repo := NewLessonProgressRepository(db)
	ctx := context.Background()

	level, program := seedProgram(t, db, "CE1")
	lesson := models.Lesson{Title: "Reading", TeacherID: 1, ProgramID: program.ID}
	require.NoError(t, lessons.Create(ctx, &lesson))

	byLevel, err := lessons.List(ctx, LessonFilter{LevelID: &level.ID})
	require.NoError(t, err)
	require.Len(t, byLevel, 1)

	progress := models.LessonProgress{StudentID: 5, LessonID: lesson.ID, Status: models.LessonProgressInProgress, CurrentPage: 1}
	require.NoError(t, repo.Upsert(ctx, &progress))

	now := time.Now()
	progress = models.LessonProgress{StudentID: 5, LessonID: lesson.ID, Status: models.LessonProgressCompleted, CurrentPage: 4, CompletedAt: &now}
	require.NoError(t, repo.Upsert(ctx, &progress))

	rows, err := repo.ListByStudent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.LessonProgressCompleted, rows[0].Status)
	require.Equal(t, 4, rows[0].CurrentPage)
	require.NotNil(t, rows[0].Lesson)

	removed, err := repo.DeleteByStudent(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestGameRepositoryCascadeAndReview(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	teacher := seedUser(t, db, models.UserRoleTeacher, nil)
	learner := seedUser(t, db, models.UserRoleStudent, nil)

	section := models.GameSection{Name: "Maths", ImageRef: "section.png", CreatedBy: teacher.ID}
	require.NoError(t, repo.CreateSection(ctx, &section))
	game := models.Game{Name: "Tables", URL: "https://games.example/tables", SectionID: section.ID, ImageRef: "game.png", ImageURL: "/uploads/game.png", CreatedBy: teacher.ID}
	require.NoError(t, repo.CreateGame(ctx, &game))
	score := models.GameScore{GameID: game.ID, LearnerID: learner.ID, ScreenshotRef: "shot.png", ScreenshotURL: "/uploads/shot.png", SubmittedAt: time.Now()}
	require.NoError(t, repo.CreateScore(ctx, &score))

	owned, err := repo.ListScoresByOwner(ctx, teacher.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	changed, err := repo.MarkReviewed(ctx, score.ID)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.MarkReviewed(ctx, score.ID)
	require.NoError(t, err)
	require.False(t, changed)

	refs, err := repo.DeleteSection(ctx, section.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"shot.png", "game.png", "section.png"}, refs)

	_, err = repo.GetGame(ctx, game.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestActivityLogRepositoryList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	actor := uint(3)
	entity := uint(9)
	require.NoError(t, repo.Create(ctx, &models.ActivityLog{ActorID: actor, ActorRole: "admin", Action: "user.approve", EntityType: "user", EntityID: &entity}))
	require.NoError(t, repo.Create(ctx, &models.ActivityLog{ActorID: actor, ActorRole: "admin", Action: "user.reject", EntityType: "user"}))
	require.NoError(t, repo.Create(ctx, &models.ActivityLog{ActorID: 4, ActorRole: "admin", Action: "level.create", EntityType: "level"}))

	entries, total, err := repo.List(ctx, ActivityLogFilter{ActorID: &actor})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, entries, 2)

	entries, total, err = repo.List(ctx, ActivityLogFilter{EntityType: "user", EntityID: &entity})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "user.approve", entries[0].Action)

	entries, total, err = repo.List(ctx, ActivityLogFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, entries, 1)
}
