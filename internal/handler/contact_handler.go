package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// ContactHandler lists the people a caller can message.
type ContactHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewContactHandler constructs the handler.
func NewContactHandler(service service.UserService, logger zerolog.Logger) *ContactHandler {
	return &ContactHandler{
		service: service,
		logger:  logger.With().Str("component", "contact_handler").Logger(),
	}
}

// Register attaches the contact routes.
func (h *ContactHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ContactHandler) list(c *fiber.Ctx) error {
	contacts, err := h.service.Contacts(c.UserContext(), principalFromContext(c), c.Query("role"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "contacts retrieved", contacts)
}
