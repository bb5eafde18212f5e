package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/middleware"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// MessageHandler wires direct messaging endpoints including the websocket upgrade.
type MessageHandler struct {
	service service.MessageService
	logger  zerolog.Logger
}

// NewMessageHandler creates a message handler instance.
func NewMessageHandler(service service.MessageService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		logger:  logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds message routes under the provided router group.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		principal, err := identity.Authorize(ptr(principalFromContext(c)), identity.CapSendMessages)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		c.Locals("ws_principal", principal)
		c.Locals("request_ctx", context.WithoutCancel(c.UserContext()))
		return c.Next()
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Post("", h.send)
	router.Get("/unread", h.unreadSenders)
	router.Get("/conversations/:userId", h.conversation)
	router.Patch("/conversations/:userId/read", h.markConversationRead)
	router.Patch("/:id/read", h.markRead)
	router.Delete("/:id", h.delete)
}

func (h *MessageHandler) handleConnection(conn *websocket.Conn) {
	principal, _ := conn.Locals("ws_principal").(identity.Principal)
	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.MessageConnectionOptions{
		UserID:        principal.UserID,
		Role:          principal.Role,
		CorrelationID: correlation,
		Context:       middleware.ContextWithCorrelation(baseCtx, correlation),
	}

	h.logger.Info().Uint("user_id", principal.UserID).Msg("message websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", principal.UserID).Msg("message websocket disconnected")
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	message, err := h.service.Send(c.UserContext(), principalFromContext(c), payload, optionalFormFile(c, "file"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *MessageHandler) conversation(c *fiber.Ctx) error {
	otherID, err := parseUintParam(c, "userId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return badRequest(c, err.Error())
	}

	messages, err := h.service.Conversation(c.UserContext(), principalFromContext(c), otherID, limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "conversation retrieved", messages)
}

func (h *MessageHandler) markConversationRead(c *fiber.Ctx) error {
	otherID, err := parseUintParam(c, "userId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.service.MarkConversationRead(c.UserContext(), principalFromContext(c), otherID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "conversation marked as read", fiber.Map{"updated": updated})
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.MarkRead(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "message marked as read", nil)
}

func (h *MessageHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "message deleted", nil)
}

func (h *MessageHandler) unreadSenders(c *fiber.Ctx) error {
	senders, err := h.service.UnreadSenders(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unread senders", senders)
}
