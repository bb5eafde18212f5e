package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/noah-isme/sekolah-go-api/internal/correlation"
)

// CorrelationID tags each request with an id that follows the request into
// services and onto the lifecycle events they publish.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := correlation.Resolve(uuid.NewString, c.Get(correlation.Header), c.Get(correlation.FallbackHeader))

		c.Locals(correlation.LocalsKey, id)
		c.Set(correlation.Header, id)
		c.SetUserContext(correlation.WithID(c.UserContext(), id))

		return c.Next()
	}
}

// GetCorrelationID returns the id bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlation.LocalsKey).(string); ok && id != "" {
		return id
	}
	return correlation.FromContext(c.UserContext())
}

// ContextWithCorrelation attaches id to ctx, used by long-lived connections
// whose handlers outlive the upgrade request.
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	return correlation.WithID(ctx, id)
}
