package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// VocabularyHandler serves vocabulary categories and words.
type VocabularyHandler struct {
	service service.VocabularyService
	logger  zerolog.Logger
}

// NewVocabularyHandler builds a vocabulary handler instance.
func NewVocabularyHandler(service service.VocabularyService, logger zerolog.Logger) *VocabularyHandler {
	return &VocabularyHandler{
		service: service,
		logger:  logger.With().Str("component", "vocabulary_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *VocabularyHandler) Register(router fiber.Router) {
	router.Get("/categories", h.listCategories)
	router.Post("/categories", h.createCategory)
	router.Get("", h.list)
	router.Post("", h.create)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *VocabularyHandler) listCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "categories retrieved", categories)
}

func (h *VocabularyHandler) createCategory(c *fiber.Ctx) error {
	var payload dto.VocabularyCategoryRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	category, err := h.service.CreateCategory(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "category created", category)
}

func (h *VocabularyHandler) list(c *fiber.Ctx) error {
	categoryID, err := parseQueryUint(c, "category_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	words, err := h.service.List(c.UserContext(), principalFromContext(c), categoryID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "vocabulary retrieved", words)
}

func (h *VocabularyHandler) create(c *fiber.Ctx) error {
	var payload dto.VocabularyRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	word, err := h.service.Create(c.UserContext(), principalFromContext(c), payload, vocabularyMedia(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "vocabulary created", word)
}

func (h *VocabularyHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.VocabularyRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	word, err := h.service.Update(c.UserContext(), principalFromContext(c), id, payload, vocabularyMedia(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "vocabulary updated", word)
}

func (h *VocabularyHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "vocabulary deleted", nil)
}

func vocabularyMedia(c *fiber.Ctx) service.VocabularyMedia {
	return service.VocabularyMedia{
		Image: optionalFormFile(c, "image"),
		Audio: optionalFormFile(c, "audio"),
	}
}
