package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/service"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// NotificationHandler manages SSE notification streams and inbox operations.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Delete("", h.deleteAll)
	router.Get("/unread-count", h.unreadCount)
	router.Get("/stream", h.stream)
	router.Patch("/:id/read", h.markRead)
	router.Delete("/:id", h.delete)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return badRequest(c, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return badRequest(c, "invalid offset")
	}

	notifications, err := h.service.List(c.UserContext(), principalFromContext(c), limit, offset)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) unreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unread notifications", fiber.Map{"unread": count})
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	principal, err := identity.Authorize(ptr(principalFromContext(c)), identity.CapReadNotifications)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(c.UserContext())
	stream, cleanup := h.service.Subscribe(principal.UserID)
	logger := requestLogger(h.logger, c).With().Uint("user_id", principal.UserID).Logger()
	keepAlive := h.keepAlive

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAlive / 2)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					logger.Debug().Err(err).Msg("failed to write notification event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("notification stream closed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid notification id")
	}

	notification, err := h.service.MarkRead(c.UserContext(), principalFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid notification id")
	}

	if err := h.service.Delete(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notification deleted", nil)
}

func (h *NotificationHandler) deleteAll(c *fiber.Ctx) error {
	removed, err := h.service.DeleteAll(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notifications deleted", fiber.Map{"deleted": removed})
}

func writeNotificationEvent(w *bufio.Writer, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\nid: %d\n", notification.ID); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}

func ptr[T any](v T) *T {
	return &v
}
