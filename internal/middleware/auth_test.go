package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims(userID uint, exp time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"exp": time.Now().Add(exp).Unix(),
		"iss": TokenIssuer,
		"aud": TokenAudience,
	}
}

func TestParseToken(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		_, userID, err := ParseToken(signToken(t, validClaims(42, time.Hour)), testSecret)
		require.NoError(t, err)
		assert.Equal(t, uint(42), userID)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := validClaims(42, time.Hour)
		claims["iss"] = "someone-else"
		_, _, err := ParseToken(signToken(t, claims), testSecret)
		assert.ErrorIs(t, err, errInvalidIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := validClaims(42, time.Hour)
		claims["aud"] = "other-client"
		_, _, err := ParseToken(signToken(t, claims), testSecret)
		assert.ErrorIs(t, err, errInvalidAudience)
	})

	t.Run("non numeric subject", func(t *testing.T) {
		claims := validClaims(42, time.Hour)
		claims["sub"] = "alice"
		_, _, err := ParseToken(signToken(t, claims), testSecret)
		assert.ErrorIs(t, err, errInvalidSubject)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, _, err := ParseToken(signToken(t, validClaims(42, time.Hour)), "another-secret")
		assert.ErrorIs(t, err, errInvalidToken)
	})
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/test", AuthRequired(testSecret, nil), func(c *fiber.Ctx) error {
		userID := c.Locals("userID")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"userID": userID})
	})

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
	}{
		{
			name:           "Happy Path",
			authHeader:     "Bearer " + signToken(t, validClaims(123, time.Hour)),
			expectedStatus: http.StatusOK,
			expectedUserID: 123,
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Format",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Token",
			authHeader:     "Bearer malformed.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + signToken(t, validClaims(123, -time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
			}
		})
	}
}

func TestAuthRequired_RevokedToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	claims := validClaims(7, time.Hour)
	claims["jti"] = "revoked-jti"
	require.NoError(t, mr.Set("blacklist:revoked-jti", "1"))

	app := fiber.New()
	app.Get("/test", AuthRequired(testSecret, rdb), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, claims))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired_WebSocketTicketIsSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set("ws_ticket:abc", "9"))

	app := fiber.New()
	app.Get("/api/ws", AuthRequired(testSecret, rdb), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": c.Locals("userID")})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/ws?ticket=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(9), body["userID"])
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/ws?ticket=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}
