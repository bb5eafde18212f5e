package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// CurriculumHandler serves levels, programs and units.
type CurriculumHandler struct {
	service service.CurriculumService
	logger  zerolog.Logger
}

// NewCurriculumHandler builds a curriculum handler instance.
func NewCurriculumHandler(service service.CurriculumService, logger zerolog.Logger) *CurriculumHandler {
	return &CurriculumHandler{
		service: service,
		logger:  logger.With().Str("component", "curriculum_handler").Logger(),
	}
}

// RegisterPublic binds the read routes needed before an account exists.
func (h *CurriculumHandler) RegisterPublic(router fiber.Router) {
	router.Get("/levels", h.listLevels)
	router.Get("/programs", h.listPrograms)
	router.Get("/programs/:id/units", h.listUnits)
}

// RegisterAdmin binds the write routes.
func (h *CurriculumHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/levels", h.createLevel)
	router.Post("/programs", h.createProgram)
	router.Post("/units", h.createUnit)
}

func (h *CurriculumHandler) listLevels(c *fiber.Ctx) error {
	levels, err := h.service.ListLevels(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "levels retrieved", levels)
}

func (h *CurriculumHandler) listPrograms(c *fiber.Ctx) error {
	levelID, err := parseQueryUint(c, "level_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var filter *uint
	if levelID > 0 {
		filter = &levelID
	}

	programs, err := h.service.ListPrograms(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "programs retrieved", programs)
}

func (h *CurriculumHandler) listUnits(c *fiber.Ctx) error {
	programID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	units, err := h.service.ListUnits(c.UserContext(), programID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "units retrieved", units)
}

func (h *CurriculumHandler) createLevel(c *fiber.Ctx) error {
	var payload dto.LevelCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	level, err := h.service.CreateLevel(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "level created", level)
}

func (h *CurriculumHandler) createProgram(c *fiber.Ctx) error {
	var payload dto.ProgramCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	program, err := h.service.CreateProgram(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "program created", program)
}

func (h *CurriculumHandler) createUnit(c *fiber.Ctx) error {
	var payload dto.UnitCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	unit, err := h.service.CreateUnit(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "unit created", unit)
}
