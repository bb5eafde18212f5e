package handler

import (
	"errors"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/middleware"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindUnauthorized: fiber.StatusUnauthorized,
	apperror.KindForbidden:    fiber.StatusForbidden,
	apperror.KindNotFound:     fiber.StatusNotFound,
	apperror.KindConflict:     fiber.StatusConflict,
	apperror.KindInvalidState: fiber.StatusConflict,
	apperror.KindValidation:   fiber.StatusBadRequest,
}

// respondError maps a service error onto the response envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, string(apperror.KindValidation), validationErrors.Error())
	}
	if errors.Is(err, service.ErrUploadTooLarge) {
		return utils.SendErrorWithCode(c, fiber.StatusRequestEntityTooLarge, string(apperror.KindValidation), apperror.MessageOf(err))
	}

	kind := apperror.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		return utils.SendErrorWithCode(c, status, string(kind), apperror.MessageOf(err))
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
	return utils.SendErrorWithCode(c, fiber.StatusInternalServerError, string(apperror.KindInternal), "internal server error")
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.SendErrorWithCode(c, fiber.StatusBadRequest, string(apperror.KindValidation), message)
}

func principalFromContext(c *fiber.Ctx) identity.Principal {
	return middleware.PrincipalFromContext(c)
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return parsed, nil
}

func parseQueryUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

// optionalFormFile returns nil when the field is absent; the service decides
// whether the file is required.
func optionalFormFile(c *fiber.Ctx, key string) *multipart.FileHeader {
	file, err := c.FormFile(key)
	if err != nil {
		return nil
	}
	return file
}
