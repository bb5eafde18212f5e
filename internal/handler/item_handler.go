package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ItemHandler manages tests and quizzes and the per-item submission routes.
type ItemHandler struct {
	items       service.ItemService
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewItemHandler builds an item handler instance.
func NewItemHandler(items service.ItemService, submissions service.SubmissionService, logger zerolog.Logger) *ItemHandler {
	return &ItemHandler{
		items:       items,
		submissions: submissions,
		logger:      logger.With().Str("component", "item_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ItemHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/submissions", h.submit)
	router.Get("/:id/submissions", h.listSubmissions)
	router.Get("/:id/submissions/export", h.export)
}

func (h *ItemHandler) list(c *fiber.Ctx) error {
	programID, err := parseQueryUint(c, "program_id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	lessonID, err := parseQueryUint(c, "lesson_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter := service.ItemListFilter{
		Kind:      c.Query("kind"),
		ProgramID: programID,
		LessonID:  lessonID,
	}

	items, err := h.items.List(c.UserContext(), principalFromContext(c), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "items retrieved", items)
}

func (h *ItemHandler) create(c *fiber.Ctx) error {
	var payload dto.ItemCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	item, err := h.items.Create(c.UserContext(), principalFromContext(c), payload, optionalFormFile(c, "media"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "item created", item)
}

func (h *ItemHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	item, err := h.items.Get(c.UserContext(), principalFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item retrieved", item)
}

func (h *ItemHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.ItemUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	item, err := h.items.Update(c.UserContext(), principalFromContext(c), id, payload, optionalFormFile(c, "media"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item updated", item)
}

func (h *ItemHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.items.Delete(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item deleted", nil)
}

func (h *ItemHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	submission, err := h.submissions.Submit(c.UserContext(), principalFromContext(c), id, optionalFormFile(c, "file"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", submission)
}

func (h *ItemHandler) listSubmissions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	submissions, err := h.submissions.ListForItem(c.UserContext(), principalFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *ItemHandler) export(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	content, filename, err := h.submissions.Export(c.UserContext(), principalFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(content)
}
