package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// AuthHandler exposes registration and login.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler builds an auth handler instance.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches the routes; loginGuard throttles the login endpoint.
func (h *AuthHandler) Register(router fiber.Router, loginGuard fiber.Handler) {
	router.Post("/register", h.register)
	if loginGuard != nil {
		router.Post("/login", loginGuard, h.login)
		return
	}
	router.Post("/login", h.login)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := h.service.Register(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registration received, awaiting approval", user)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	session, err := h.service.Login(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "login successful", session)
}
