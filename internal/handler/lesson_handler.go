package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// LessonHandler manages lessons and learner reading progress.
type LessonHandler struct {
	service service.LessonService
	logger  zerolog.Logger
}

// NewLessonHandler builds a lesson handler instance.
func NewLessonHandler(service service.LessonService, logger zerolog.Logger) *LessonHandler {
	return &LessonHandler{
		service: service,
		logger:  logger.With().Str("component", "lesson_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *LessonHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/progress/me", h.myProgress)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/progress", h.trackProgress)
}

func (h *LessonHandler) list(c *fiber.Ctx) error {
	programID, err := parseQueryUint(c, "program_id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	unitID, err := parseQueryUint(c, "unit_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	lessons, err := h.service.List(c.UserContext(), principalFromContext(c), service.LessonListFilter{ProgramID: programID, UnitID: unitID})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lessons retrieved", lessons)
}

func (h *LessonHandler) create(c *fiber.Ctx) error {
	var payload dto.LessonCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	lesson, err := h.service.Create(c.UserContext(), principalFromContext(c), payload, optionalFormFile(c, "media"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "lesson created", lesson)
}

func (h *LessonHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	lesson, err := h.service.Get(c.UserContext(), principalFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson retrieved", lesson)
}

func (h *LessonHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.LessonUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	lesson, err := h.service.Update(c.UserContext(), principalFromContext(c), id, payload, optionalFormFile(c, "media"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson updated", lesson)
}

func (h *LessonHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson deleted", nil)
}

func (h *LessonHandler) trackProgress(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.LessonProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	progress, err := h.service.TrackProgress(c.UserContext(), principalFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson progress saved", progress)
}

func (h *LessonHandler) myProgress(c *fiber.Ctx) error {
	rows, err := h.service.MyProgress(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson progress retrieved", rows)
}
