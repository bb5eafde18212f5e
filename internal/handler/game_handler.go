package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// GameHandler serves game sections, games and score screenshots.
type GameHandler struct {
	service service.GameService
	logger  zerolog.Logger
}

// NewGameHandler builds a game handler instance.
func NewGameHandler(service service.GameService, logger zerolog.Logger) *GameHandler {
	return &GameHandler{
		service: service,
		logger:  logger.With().Str("component", "game_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GameHandler) Register(router fiber.Router) {
	router.Get("/sections", h.listSections)
	router.Post("/sections", h.createSection)
	router.Put("/sections/:id", h.updateSection)
	router.Delete("/sections/:id", h.deleteSection)

	router.Get("/scores", h.listScores)
	router.Get("/scores/mine", h.listMyScores)
	router.Patch("/scores/:id/review", h.reviewScore)

	router.Get("", h.listGames)
	router.Post("", h.createGame)
	router.Put("/:id", h.updateGame)
	router.Delete("/:id", h.deleteGame)
	router.Post("/:id/scores", h.submitScore)
}

func (h *GameHandler) listSections(c *fiber.Ctx) error {
	sections, err := h.service.ListSections(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "sections retrieved", sections)
}

func (h *GameHandler) createSection(c *fiber.Ctx) error {
	var payload dto.GameSectionRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	section, err := h.service.CreateSection(c.UserContext(), principalFromContext(c), payload, optionalFormFile(c, "image"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "section created", section)
}

func (h *GameHandler) updateSection(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.GameSectionRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	section, err := h.service.UpdateSection(c.UserContext(), principalFromContext(c), id, payload, optionalFormFile(c, "image"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "section updated", section)
}

func (h *GameHandler) deleteSection(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.DeleteSection(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "section deleted", nil)
}

func (h *GameHandler) listGames(c *fiber.Ctx) error {
	sectionID, err := parseQueryUint(c, "section_id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	games, err := h.service.ListGames(c.UserContext(), principalFromContext(c), sectionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "games retrieved", games)
}

func (h *GameHandler) createGame(c *fiber.Ctx) error {
	var payload dto.GameRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	game, err := h.service.CreateGame(c.UserContext(), principalFromContext(c), payload, optionalFormFile(c, "image"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "game created", game)
}

func (h *GameHandler) updateGame(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.GameRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	game, err := h.service.UpdateGame(c.UserContext(), principalFromContext(c), id, payload, optionalFormFile(c, "image"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "game updated", game)
}

func (h *GameHandler) deleteGame(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.DeleteGame(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "game deleted", nil)
}

func (h *GameHandler) submitScore(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	score, err := h.service.SubmitScore(c.UserContext(), principalFromContext(c), id, optionalFormFile(c, "screenshot"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "score submitted", score)
}

func (h *GameHandler) listMyScores(c *fiber.Ctx) error {
	scores, err := h.service.ListMyScores(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "scores retrieved", scores)
}

func (h *GameHandler) listScores(c *fiber.Ctx) error {
	scores, err := h.service.ListScores(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "scores retrieved", scores)
}

func (h *GameHandler) reviewScore(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	score, err := h.service.ReviewScore(c.UserContext(), principalFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "score reviewed", score)
}
