package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.listForInstructor)
	router.Get("/mine", h.listMine)
	router.Put("/:id", h.resubmit)
	router.Delete("/:id", h.withdraw)
	router.Put("/:id/correction", h.correct)
	router.Delete("/:id/correction", h.clearCorrection)
}

func (h *SubmissionHandler) listForInstructor(c *fiber.Ctx) error {
	submissions, err := h.service.ListForInstructor(c.UserContext(), principalFromContext(c), c.Query("kind"), c.Query("status"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	submissions, err := h.service.ListMine(c.UserContext(), principalFromContext(c), c.Query("kind"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) resubmit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	submission, err := h.service.Resubmit(c.UserContext(), principalFromContext(c), id, optionalFormFile(c, "file"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission updated", submission)
}

func (h *SubmissionHandler) withdraw(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.Withdraw(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission withdrawn", nil)
}

func (h *SubmissionHandler) correct(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.CorrectionRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	submission, err := h.service.Correct(c.UserContext(), principalFromContext(c), id, payload, optionalFormFile(c, "correction"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "correction saved", submission)
}

func (h *SubmissionHandler) clearCorrection(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	submission, err := h.service.ClearCorrection(c.UserContext(), principalFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "correction cleared", submission)
}
