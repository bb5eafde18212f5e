package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/database"
	"github.com/noah-isme/sekolah-go-api/internal/events"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
	"github.com/noah-isme/sekolah-go-api/pkg/storage"
)

var (
	pngBytes = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x00}, 64)...)
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))

	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

// memoryBackend keeps artifacts in memory and records deletions.
type memoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: make(map[string][]byte)}
}

func (b *memoryBackend) Put(_ context.Context, name, _ string, reader io.Reader) (storage.Object, error) {
	if b.putErr != nil {
		return storage.Object{}, b.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.Object{}, err
	}
	ref := uuid.NewString() + "-" + name

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[ref] = data
	return storage.Object{Ref: ref, URL: "/uploads/" + ref}, nil
}

func (b *memoryBackend) Delete(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, ref)
	b.deleted = append(b.deleted, ref)
	return nil
}

func (b *memoryBackend) has(ref string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[ref]
	return ok
}

func (b *memoryBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type schoolFixture struct {
	level    models.Level
	program  models.Program
	teacher  models.User
	learner  models.User
	guardian models.User
}

func seedUser(t *testing.T, db *gorm.DB, role string, levelID *uint) models.User {
	t.Helper()
	user := models.User{
		FirstName:    "Test",
		LastName:     role,
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		Status:       models.UserStatusApproved,
		LevelID:      levelID,
	}
	if role == models.UserRoleStudent {
		user.EnrollmentNumber = "ENR-" + uuid.NewString()[:8]
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedSchool(t *testing.T, db *gorm.DB) schoolFixture {
	t.Helper()

	level := models.Level{Name: "CM1-" + uuid.NewString()[:8]}
	require.NoError(t, db.Create(&level).Error)
	program := models.Program{Title: "CM1 program", LevelID: level.ID}
	require.NoError(t, db.Create(&program).Error)

	fx := schoolFixture{
		level:    level,
		program:  program,
		teacher:  seedUser(t, db, models.UserRoleTeacher, nil),
		learner:  seedUser(t, db, models.UserRoleStudent, &level.ID),
		guardian: seedUser(t, db, models.UserRoleParent, nil),
	}
	require.NoError(t, repository.NewGuardianRepository(db).Link(context.Background(), fx.guardian.ID, fx.learner.ID))
	return fx
}

func seedItem(t *testing.T, db *gorm.DB, teacherID, programID uint, kind, title string) models.AssignableItem {
	t.Helper()
	item := models.AssignableItem{Kind: kind, Title: title, TeacherID: teacherID, ProgramID: programID}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func principalOf(user models.User) identity.Principal {
	return identity.Principal{UserID: user.ID, Role: identity.Role(user.Role)}
}

func newTestArtifactStore(db *gorm.DB, backend ArtifactBackend) ArtifactStore {
	return NewArtifactStore(backend, repository.NewUploadRepository(db), 1, testLogger())
}

type submissionHarness struct {
	db            *gorm.DB
	backend       *memoryBackend
	notifications NotificationService
	publisher     *events.RecordingPublisher
	service       SubmissionService
}

// harnessOverrides swaps collaborators of the submission harness; nil keeps the default.
type harnessOverrides struct {
	guardians   repository.GuardianRepository
	submissions repository.SubmissionRepository
}

func newSubmissionHarness(t *testing.T, db *gorm.DB) submissionHarness {
	t.Helper()
	return newSubmissionHarnessWith(t, db, harnessOverrides{})
}

func newSubmissionHarnessWith(t *testing.T, db *gorm.DB, overrides harnessOverrides) submissionHarness {
	t.Helper()

	guardians := overrides.guardians
	if guardians == nil {
		guardians = repository.NewGuardianRepository(db)
	}
	submissions := overrides.submissions
	if submissions == nil {
		submissions = repository.NewSubmissionRepository(db)
	}

	backend := newMemoryBackend()
	users := repository.NewUserRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, testLogger())
	notifier := NewNotifier(guardians, users, notifications, testLogger())
	publisher := &events.RecordingPublisher{}

	svc := NewSubmissionService(
		submissions,
		repository.NewItemRepository(db),
		users,
		newTestArtifactStore(db, backend),
		notifier,
		publisher,
		validator.New(),
		testLogger(),
	)

	return submissionHarness{db: db, backend: backend, notifications: notifications, publisher: publisher, service: svc}
}

func notificationsFor(t *testing.T, db *gorm.DB, recipientID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", recipientID).Order("id ASC").Find(&out).Error)
	return out
}
