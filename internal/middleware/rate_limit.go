package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// RateLimit creates a per-user rate limiter; anonymous callers are keyed by IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if principal := PrincipalFromContext(c); principal.UserID != 0 {
				return fmt.Sprintf("%s:user:%d", identifier, principal.UserID)
			}
			return fmt.Sprintf("%s:ip:%s", identifier, c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendErrorWithCode(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests")
		},
	})
}
