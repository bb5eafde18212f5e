package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/utils"
)

const (
	localsPrincipal = "principal"
	localsUserID    = "user_id"
	localsUserRole  = "user_role"
)

// JWTProtected returns a middleware that validates JWT bearer tokens and
// binds the resolved principal to the request.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			// Browsers cannot set headers on websocket or EventSource requests.
			tokenString = strings.TrimSpace(c.Query("token"))
		}
		if tokenString == "" {
			return unauthorized(c, "authorization header missing")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return unauthorized(c, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "invalid token claims")
		}

		userID, err := normalizeUserID(claims["sub"])
		if err != nil || userID == 0 {
			return unauthorized(c, "invalid token subject")
		}
		role, ok := identity.ParseRole(claimString(claims["role"]))
		if !ok {
			return unauthorized(c, "invalid token role")
		}

		principal := identity.Principal{UserID: userID, Role: role}
		c.Locals(localsPrincipal, principal)
		c.Locals(localsUserID, userID)
		c.Locals(localsUserRole, string(role))

		return c.Next()
	}
}

// PrincipalFromContext returns the principal bound by JWTProtected, or the
// zero principal for anonymous requests.
func PrincipalFromContext(c *fiber.Ctx) identity.Principal {
	if c == nil {
		return identity.Principal{}
	}
	if principal, ok := c.Locals(localsPrincipal).(identity.Principal); ok {
		return principal
	}
	return identity.Principal{}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authorization := strings.TrimSpace(c.Get("Authorization"))
	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", false
	}
	return strings.TrimSpace(authorization[len(bearer):]), true
}

func unauthorized(c *fiber.Ctx, message string) error {
	return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, string(apperror.KindUnauthorized), message)
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

func claimString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
