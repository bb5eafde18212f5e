package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// AdminUserHandler manages account approval and guardian links.
type AdminUserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewAdminUserHandler constructs the handler.
func NewAdminUserHandler(service service.UserService, logger zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_user_handler").Logger(),
	}
}

// Register attaches the admin user routes.
func (h *AdminUserHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/guardian-links", h.link)
	router.Delete("/guardian-links", h.unlink)
	router.Get("/:id", h.get)
	router.Patch("/:id/status", h.setStatus)
}

func (h *AdminUserHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	levelID, err := parseQueryUint(c, "level_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	req := dto.UserListRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		Role:     c.Query("role"),
		Status:   c.Query("status"),
		LevelID:  levelID,
	}

	users, err := h.service.List(c.UserContext(), principalFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "users retrieved", users)
}

func (h *AdminUserHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	user, err := h.service.Get(c.UserContext(), principalFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user retrieved", user)
}

func (h *AdminUserHandler) setStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.UserStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := h.service.SetStatus(c.UserContext(), principalFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user status updated", user)
}

func (h *AdminUserHandler) link(c *fiber.Ctx) error {
	var payload dto.GuardianLinkRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.service.LinkGuardian(c.UserContext(), principalFromContext(c), payload); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "guardian linked", nil)
}

func (h *AdminUserHandler) unlink(c *fiber.Ctx) error {
	var payload dto.GuardianLinkRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.service.UnlinkGuardian(c.UserContext(), principalFromContext(c), payload); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "guardian unlinked", nil)
}
