package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// ProgressHandler serves guardian and instructor progress views.
type ProgressHandler struct {
	progress service.ProgressService
	users    service.UserService
	logger   zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(progress service.ProgressService, users service.UserService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		users:    users,
		logger:   logger.With().Str("component", "progress_handler").Logger(),
	}
}

// RegisterGuardian binds the guardian routes.
func (h *ProgressHandler) RegisterGuardian(router fiber.Router) {
	router.Get("/dependents", h.dependents)
	router.Get("/progress", h.aggregate)
	router.Delete("/progress", h.reset)
}

// RegisterLearners binds the per-learner progress route.
func (h *ProgressHandler) RegisterLearners(router fiber.Router) {
	router.Get("/:id/progress", h.learner)
}

func (h *ProgressHandler) dependents(c *fiber.Ctx) error {
	dependents, err := h.users.Dependents(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "dependents retrieved", dependents)
}

func (h *ProgressHandler) aggregate(c *fiber.Ctx) error {
	summaries, err := h.progress.AggregateProgress(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "progress retrieved", summaries)
}

func (h *ProgressHandler) reset(c *fiber.Ctx) error {
	result, err := h.progress.ResetProgress(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "progress reset", result)
}

func (h *ProgressHandler) learner(c *fiber.Ctx) error {
	learnerID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.progress.LearnerProgress(c.UserContext(), principalFromContext(c), learnerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "learner progress retrieved", summary)
}
