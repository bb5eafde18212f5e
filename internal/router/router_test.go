package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/config"
	"github.com/noah-isme/sekolah-go-api/internal/database"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/events"
	"github.com/noah-isme/sekolah-go-api/internal/handler"
	"github.com/noah-isme/sekolah-go-api/internal/middleware"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
	"github.com/noah-isme/sekolah-go-api/internal/router"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/pkg/storage"
)

const (
	testSecret        = "router-test-secret"
	adminEmail        = "admin@school.test"
	defaultPassword   = "password123"
	submissionPayload = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"
)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	cfg := config.Config{
		AppName:           "Sekolah Test",
		AppEnv:            "test",
		JWTSecret:         testSecret,
		LoginRateLimit:    50,
		StoragePublicPath: "/files",
	}

	local, err := storage.NewLocal(t.TempDir(), cfg.StoragePublicPath, logger)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	guardianRepo := repository.NewGuardianRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	lessonProgressRepo := repository.NewLessonProgressRepository(db)
	itemRepo := repository.NewItemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	artifacts := service.NewArtifactStore(local, repository.NewUploadRepository(db), 5, logger)
	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, logger)
	notifier := service.NewNotifier(guardianRepo, userRepo, notificationService, logger)
	publisher := &events.RecordingPublisher{}

	authService := service.NewAuthService(userRepo, guardianRepo, curriculumRepo, validate, service.AuthConfig{
		JWTSecret:  testSecret,
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, logger)
	userService := service.NewUserService(userRepo, guardianRepo, activityService, validate, logger)
	curriculumService := service.NewCurriculumService(curriculumRepo, activityService, validate, logger)
	lessonService := service.NewLessonService(lessonRepo, lessonProgressRepo, curriculumRepo, userRepo, artifacts, validate, logger)
	itemService := service.NewItemService(itemRepo, curriculumRepo, lessonRepo, userRepo, artifacts, notifier, publisher, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, itemRepo, userRepo, artifacts, notifier, publisher, validate, logger)
	progressService := service.NewProgressService(guardianRepo, userRepo, lessonProgressRepo, submissionRepo, activityService, logger)

	require.NoError(t, authService.EnsureAdmin(context.Background(), adminEmail, defaultPassword))

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		DB:                   db,
		AuthHandler:          handler.NewAuthHandler(authService, logger),
		CurriculumHandler:    handler.NewCurriculumHandler(curriculumService, logger),
		AdminUserHandler:     handler.NewAdminUserHandler(userService, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activityService, logger),
		ContactHandler:       handler.NewContactHandler(userService, logger),
		ProgressHandler:      handler.NewProgressHandler(progressService, userService, logger),
		LessonHandler:        handler.NewLessonHandler(lessonService, logger),
		ItemHandler:          handler.NewItemHandler(itemService, submissionService, logger),
		SubmissionHandler:    handler.NewSubmissionHandler(submissionService, logger),
		NotificationHandler:  handler.NewNotificationHandler(notificationService, logger, time.Second),
		JWTMiddleware:        middleware.JWTProtected(testSecret),
		UploadDir:            local.Dir(),
	})

	return app, db
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func doMultipart(t *testing.T, app *fiber.App, method, path, token string, fields map[string]string, fileField, filename string, content []byte) *http.Response {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func register(t *testing.T, app *fiber.App, payload map[string]any) dto.UserResponse {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/v2/auth/register", "", payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body envelope[dto.UserResponse]
	decode(t, resp, &body)
	require.Equal(t, models.UserStatusPending, body.Data.Status)
	return body.Data
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/v2/auth/login", "", map[string]any{
		"email":    email,
		"password": defaultPassword,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[dto.AuthResponse]
	decode(t, resp, &body)
	require.NotEmpty(t, body.Data.Token)
	return body.Data.Token
}

func approve(t *testing.T, app *fiber.App, adminToken string, userID uint) {
	t.Helper()

	path := "/api/v2/admin/users/" + strconv.Itoa(int(userID)) + "/status"
	resp := doJSON(t, app, http.MethodPatch, path, adminToken, map[string]any{"status": models.UserStatusApproved})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestSubmissionLifecycleAcrossRoles(t *testing.T) {
	app, db := setupApp(t)

	level := models.Level{Name: "CE2"}
	require.NoError(t, db.Create(&level).Error)
	program := models.Program{Title: "CE2 French", LevelID: level.ID}
	require.NoError(t, db.Create(&program).Error)

	adminToken := login(t, app, adminEmail)

	teacher := register(t, app, map[string]any{
		"first_name": "Awa", "last_name": "Diallo", "email": "teacher@school.test",
		"password": defaultPassword, "role": "teacher", "specialty": "French", "matricule": "T-001",
	})
	learner := register(t, app, map[string]any{
		"first_name": "Moussa", "last_name": "Kane", "email": "learner@school.test",
		"password": defaultPassword, "role": "student", "level_id": level.ID, "enrollment_number": "E-042",
	})
	guardian := register(t, app, map[string]any{
		"first_name": "Fatou", "last_name": "Kane", "email": "guardian@school.test",
		"password": defaultPassword, "role": "parent", "phone": "+221700000000", "dependent_ids": []uint{learner.ID},
	})

	// Pending accounts cannot sign in.
	resp := doJSON(t, app, http.MethodPost, "/api/v2/auth/login", "", map[string]any{
		"email": "teacher@school.test", "password": defaultPassword,
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	for _, id := range []uint{teacher.ID, learner.ID, guardian.ID} {
		approve(t, app, adminToken, id)
	}

	teacherToken := login(t, app, "teacher@school.test")
	learnerToken := login(t, app, "learner@school.test")
	guardianToken := login(t, app, "guardian@school.test")

	resp = doMultipart(t, app, http.MethodPost, "/api/v2/items", teacherToken, map[string]string{
		"kind":         "test",
		"title":        "Dictation",
		"instructions": "Write the dictated paragraph",
		"program_id":   strconv.Itoa(int(program.ID)),
	}, "", "", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var itemBody envelope[dto.ItemResponse]
	decode(t, resp, &itemBody)
	itemPath := "/api/v2/items/" + strconv.Itoa(int(itemBody.Data.ID))

	resp = doMultipart(t, app, http.MethodPost, itemPath+"/submissions", learnerToken, nil, "file", "dictation.pdf", []byte(submissionPayload))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var submissionBody envelope[dto.SubmissionResponse]
	decode(t, resp, &submissionBody)
	require.Equal(t, models.SubmissionStatusSubmitted, submissionBody.Data.Status)
	submissionPath := "/api/v2/submissions/" + strconv.Itoa(int(submissionBody.Data.ID))

	resp = doMultipart(t, app, http.MethodPost, itemPath+"/submissions", learnerToken, nil, "file", "again.pdf", []byte(submissionPayload))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var conflict envelope[any]
	decode(t, resp, &conflict)
	require.False(t, conflict.Success)
	require.Equal(t, "conflict", conflict.Code)

	resp = doJSON(t, app, http.MethodGet, "/api/v2/notifications", guardianToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var inbox envelope[[]dto.NotificationResponse]
	decode(t, resp, &inbox)
	require.Len(t, inbox.Data, 1)
	require.Equal(t, string(events.EventItemSubmitted), inbox.Data[0].Type)

	resp = doJSON(t, app, http.MethodGet, "/api/v2/submissions?kind=test", teacherToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var anonymous envelope[[]dto.AnonymousSubmissionResponse]
	decode(t, resp, &anonymous)
	require.Len(t, anonymous.Data, 1)
	require.Equal(t, submissionBody.Data.ID, anonymous.Data[0].ID)

	resp = doMultipart(t, app, http.MethodPut, submissionPath+"/correction", teacherToken, map[string]string{
		"status":   models.SubmissionStatusCorrected,
		"feedback": "Careful with accents",
	}, "", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doMultipart(t, app, http.MethodPut, submissionPath, learnerToken, nil, "file", "late.pdf", []byte(submissionPayload))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var invalid envelope[any]
	decode(t, resp, &invalid)
	require.Equal(t, "invalid_state", invalid.Code)

	resp = doJSON(t, app, http.MethodGet, "/api/v2/guardian/progress", guardianToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var progress envelope[[]dto.DependentSummary]
	decode(t, resp, &progress)
	require.Len(t, progress.Data, 1)
	require.Equal(t, learner.ID, progress.Data[0].LearnerID)
	require.Len(t, progress.Data[0].Tests, 1)
	require.Equal(t, models.SubmissionStatusCorrected, progress.Data[0].Tests[0].Status)
	require.Equal(t, "Careful with accents", progress.Data[0].Tests[0].Feedback)
}

func TestRouteGuards(t *testing.T) {
	app, db := setupApp(t)

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.MinCost)
	require.NoError(t, err)
	learner := models.User{
		FirstName: "Ibou", LastName: "Ndiaye", Email: "ibou@school.test", PasswordHash: string(hash),
		Role: models.UserRoleStudent, Status: models.UserStatusApproved,
	}
	require.NoError(t, db.Create(&learner).Error)
	learnerToken := login(t, app, learner.Email)

	resp := doJSON(t, app, http.MethodGet, "/api/v2/admin/users", learnerToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v2/guardian/dependents", learnerToken, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v2/notifications", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	var unauthorized envelope[any]
	decode(t, resp, &unauthorized)
	require.Equal(t, "unauthorized", unauthorized.Code)

	resp = doJSON(t, app, http.MethodGet, "/api/v2/curriculum/levels", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var health envelope[handler.HealthResponse]
	decode(t, resp, &health)
	require.Equal(t, "ok", health.Data.Status)
	require.Equal(t, "ok", health.Data.Database)
}
