package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/correlation"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
)

const testSecret = "middleware-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func principalEcho(c *fiber.Ctx) error {
	principal := PrincipalFromContext(c)
	return c.JSON(fiber.Map{"user_id": principal.UserID, "role": principal.Role})
}

func TestJWTProtectedBindsPrincipal(t *testing.T) {
	app := fiber.New()
	app.Get("/me", JWTProtected(testSecret), principalEcho)

	token := signToken(t, jwt.MapClaims{"sub": "42", "role": "Teacher", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, uint(42), body.UserID)
	require.Equal(t, string(identity.RoleInstructor), body.Role)
}

func TestJWTProtectedAcceptsQueryToken(t *testing.T) {
	app := fiber.New()
	app.Get("/stream", JWTProtected(testSecret), principalEcho)

	token := signToken(t, jwt.MapClaims{"sub": float64(7), "role": "parent", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stream?token="+token, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app := fiber.New()
	app.Get("/me", JWTProtected(testSecret), principalEcho)

	cases := map[string]string{
		"missing":      "",
		"wrong secret": "Bearer " + signToken(t, jwt.MapClaims{"sub": "1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix()}, "other"),
		"expired":      "Bearer " + signToken(t, jwt.MapClaims{"sub": "1", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret),
		"unknown role": "Bearer " + signToken(t, jwt.MapClaims{"sub": "1", "role": "janitor", "exp": time.Now().Add(time.Hour).Unix()}, testSecret),
		"no subject":   "Bearer " + signToken(t, jwt.MapClaims{"role": "admin", "exp": time.Now().Add(time.Hour).Unix()}, testSecret),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRequireCapability(t *testing.T) {
	cases := []struct {
		name      string
		principal *identity.Principal
		status    int
	}{
		{name: "allowed", principal: &identity.Principal{UserID: 1, Role: identity.RoleAdministrator}, status: fiber.StatusOK},
		{name: "wrong role", principal: &identity.Principal{UserID: 2, Role: identity.RoleLearner}, status: fiber.StatusForbidden},
		{name: "anonymous", status: fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				if tc.principal != nil {
					c.Locals(localsPrincipal, *tc.principal)
				}
				return c.Next()
			})
			app.Get("/admin", RequireCapability(identity.CapManageUsers), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRateLimitKeysAnonymousCallersByIP(t *testing.T) {
	app := fiber.New()
	app.Post("/login", RateLimit("login", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(correlation.FromContext(c.UserContext()) + "|" + GetCorrelationID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "req-123", resp.Header.Get("X-Correlation-ID"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "req-123|req-123", string(body))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", " corr-9 ")
	req.Header.Set("X-Request-ID", "req-ignored")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "corr-9", resp.Header.Get("X-Correlation-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}
