package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// AdminActivityHandler exposes the audit log.
type AdminActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewAdminActivityHandler constructs the handler.
func NewAdminActivityHandler(service service.ActivityService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AdminActivityHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	actorID, err := parseQueryUint(c, "actor_id")
	if err != nil {
		return badRequest(c, "invalid actor id")
	}

	req := dto.ActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		ActorID:    actorID,
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}

	response, err := h.service.List(c.UserContext(), principalFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "activity logs", response)
}

func parsePagination(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return 0, 0, err
	}
	if pageSize <= 0 {
		pageSize = 25
	} else if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize, nil
}
