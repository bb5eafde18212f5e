package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/config"
	"github.com/noah-isme/sekolah-go-api/internal/handler"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/middleware"
	"github.com/noah-isme/sekolah-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DB                   *gorm.DB
	AuthHandler          *handler.AuthHandler
	CurriculumHandler    *handler.CurriculumHandler
	AdminUserHandler     *handler.AdminUserHandler
	AdminActivityHandler *handler.AdminActivityHandler
	ContactHandler       *handler.ContactHandler
	ProgressHandler      *handler.ProgressHandler
	LessonHandler        *handler.LessonHandler
	ItemHandler          *handler.ItemHandler
	SubmissionHandler    *handler.SubmissionHandler
	NotificationHandler  *handler.NotificationHandler
	MessageHandler       *handler.MessageHandler
	VocabularyHandler    *handler.VocabularyHandler
	GameHandler          *handler.GameHandler
	UploadHandler        *handler.UploadHandler
	JWTMiddleware        fiber.Handler
	// UploadDir is served under cfg.StoragePublicPath when the local store is active.
	UploadDir string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())
	if deps.UploadDir != "" && cfg.StoragePublicPath != "" {
		app.Static(cfg.StoragePublicPath, deps.UploadDir, fiber.Static{ByteRange: true})
	}

	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.DB))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api/v2", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	// Public
	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"), middleware.RateLimit("login", cfg.LoginRateLimit, time.Minute))
	}
	if deps.CurriculumHandler != nil {
		deps.CurriculumHandler.RegisterPublic(api.Group("/curriculum"))
	}

	// Administration
	admin := api.Group("/admin", jwtMiddleware)
	if deps.AdminUserHandler != nil {
		deps.AdminUserHandler.Register(admin.Group("/users", middleware.RequireCapability(identity.CapManageUsers)))
	}
	if deps.CurriculumHandler != nil {
		deps.CurriculumHandler.RegisterAdmin(admin.Group("/curriculum", middleware.RequireCapability(identity.CapManageCurriculum)))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity", middleware.RequireCapability(identity.CapViewActivity)))
	}

	// Everything below needs a signed-in principal; services enforce capabilities per operation.
	if deps.ContactHandler != nil {
		deps.ContactHandler.Register(api.Group("/contacts", jwtMiddleware))
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.RegisterGuardian(api.Group("/guardian", jwtMiddleware, middleware.RequireCapability(identity.CapViewDependents)))
		deps.ProgressHandler.RegisterLearners(api.Group("/learners", jwtMiddleware, middleware.RequireCapability(identity.CapViewLearnerProgress)))
	}
	if deps.LessonHandler != nil {
		deps.LessonHandler.Register(api.Group("/lessons", jwtMiddleware))
	}
	if deps.ItemHandler != nil {
		deps.ItemHandler.Register(api.Group("/items", jwtMiddleware))
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions", jwtMiddleware))
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}
	if deps.MessageHandler != nil {
		deps.MessageHandler.Register(api.Group("/messages", jwtMiddleware))
	}
	if deps.VocabularyHandler != nil {
		deps.VocabularyHandler.Register(api.Group("/vocabulary", jwtMiddleware))
	}
	if deps.GameHandler != nil {
		deps.GameHandler.Register(api.Group("/games", jwtMiddleware))
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(api.Group("/uploads", jwtMiddleware, middleware.RateLimit("uploads", 30, time.Minute)))
	}
}
