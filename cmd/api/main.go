package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/config"
	"github.com/noah-isme/sekolah-go-api/internal/database"
	"github.com/noah-isme/sekolah-go-api/internal/events"
	"github.com/noah-isme/sekolah-go-api/internal/handler"
	"github.com/noah-isme/sekolah-go-api/internal/middleware"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
	"github.com/noah-isme/sekolah-go-api/internal/router"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	cloud "github.com/noah-isme/sekolah-go-api/pkg/cloudinary"
	"github.com/noah-isme/sekolah-go-api/pkg/storage"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(events.PublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create event publisher")
		}
		publisher = kafkaPublisher
	}
	defer publisher.Close()

	backend, uploadDir, err := buildArtifactBackend(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure artifact storage")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	guardianRepo := repository.NewGuardianRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	lessonProgressRepo := repository.NewLessonProgressRepository(db)
	itemRepo := repository.NewItemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	vocabularyRepo := repository.NewVocabularyRepository(db)
	gameRepo := repository.NewGameRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	artifacts := service.NewArtifactStore(backend, uploadRepo, cfg.MaxUploadMB, logger)
	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.EventChannel, natsConn, logger)
	notifier := service.NewNotifier(guardianRepo, userRepo, notificationService, logger)

	authService := service.NewAuthService(userRepo, guardianRepo, curriculumRepo, validate, service.AuthConfig{
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.JWTTTL,
		BcryptCost: cfg.BcryptCost,
	}, logger)
	userService := service.NewUserService(userRepo, guardianRepo, activityService, validate, logger)
	curriculumService := service.NewCurriculumService(curriculumRepo, activityService, validate, logger)
	lessonService := service.NewLessonService(lessonRepo, lessonProgressRepo, curriculumRepo, userRepo, artifacts, validate, logger)
	itemService := service.NewItemService(itemRepo, curriculumRepo, lessonRepo, userRepo, artifacts, notifier, publisher, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, itemRepo, userRepo, artifacts, notifier, publisher, validate, logger)
	progressService := service.NewProgressService(guardianRepo, userRepo, lessonProgressRepo, submissionRepo, activityService, logger)
	messageService := service.NewMessageService(messageRepo, userRepo, artifacts, redisClient, cfg.EventChannel, natsConn, validate, logger)
	vocabularyService := service.NewVocabularyService(vocabularyRepo, artifacts, validate, logger)
	gameService := service.NewGameService(gameRepo, artifacts, validate, logger)
	uploadService := service.NewUploadService(artifacts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.BootstrapAdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			logger.Fatal().Err(err).Msg("failed to bootstrap administrator")
		}
	}

	notificationService.Start(ctx)
	messageService.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxUploadMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
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
		NotificationHandler:  handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		MessageHandler:       handler.NewMessageHandler(messageService, logger),
		VocabularyHandler:    handler.NewVocabularyHandler(vocabularyService, logger),
		GameHandler:          handler.NewGameHandler(gameService, logger),
		UploadHandler:        handler.NewUploadHandler(uploadService, logger),
		JWTMiddleware:        middleware.JWTProtected(cfg.JWTSecret),
		UploadDir:            uploadDir,
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

// buildArtifactBackend returns the configured backend and, for the local
// driver, the directory to serve statically.
func buildArtifactBackend(cfg config.Config, logger zerolog.Logger) (service.ArtifactBackend, string, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverLocal:
		local, err := storage.NewLocal(cfg.StorageLocalDir, cfg.StoragePublicPath, logger)
		if err != nil {
			return nil, "", err
		}
		return local, local.Dir(), nil
	case config.StorageDriverCloudinary:
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			return nil, "", err
		}
		return uploader, "", nil
	default:
		return nil, "", errors.New("unsupported storage driver " + cfg.StorageDriver)
	}
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
