package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// UploadHandler handles generic file and screenshot uploads.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("", h.upload(service.PolicyGeneric))
	router.Post("/screenshots", h.upload(service.PolicyScreenshot))
}

func (h *UploadHandler) upload(policy service.ArtifactPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "file is required")
		}

		result, err := h.service.Upload(c.UserContext(), principalFromContext(c), file, policy)
		if err != nil {
			return respondError(c, h.logger, err)
		}

		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upload successful", result)
	}
}
