package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/user", Protected(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("user_id")})
	})
	app.Get("/admin", Protected(), AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestProtected(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := protectedApp()

	// No header.
	req := httptest.NewRequest("GET", "/user", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Garbage token.
	req = httptest.NewRequest("GET", "/user", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Wrong secret.
	bad := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": 7, "email": "x@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req = httptest.NewRequest("GET", "/user", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Expired token.
	expired := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": 7, "email": "x@example.com",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	req = httptest.NewRequest("GET", "/user", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Valid token.
	good := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": 7, "email": "x@example.com", "role": "user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req = httptest.NewRequest("GET", "/user", nil)
	req.Header.Set("Authorization", "Bearer "+good)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminOnly(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := protectedApp()

	userToken := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": 7, "email": "x@example.com", "role": "user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	adminToken := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": 1, "email": "admin@example.com", "role": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
