package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

// RequireCapability rejects requests whose principal lacks the capability.
// Services check again at operation entry; this only short-circuits routes.
func RequireCapability(capability identity.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal := PrincipalFromContext(c)
		if _, err := identity.Authorize(&principal, capability); err != nil {
			kind := apperror.KindOf(err)
			status := fiber.StatusForbidden
			if kind == apperror.KindUnauthorized {
				status = fiber.StatusUnauthorized
			}
			return utils.SendErrorWithCode(c, status, string(kind), apperror.MessageOf(err))
		}
		return c.Next()
	}
}
