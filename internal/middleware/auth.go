// Package middleware provides authentication, logging, metrics, rate limiting and tracing middleware.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"socialnet/internal/cache"
	"socialnet/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	// TokenIssuer is the "iss" claim of every token this API signs.
	TokenIssuer = "socialnet-api"
	// TokenAudience is the "aud" claim of every token this API signs.
	TokenAudience = "socialnet-client"
)

var (
	errInvalidToken    = errors.New("invalid or expired token")
	errInvalidIssuer   = errors.New("invalid token issuer")
	errInvalidAudience = errors.New("invalid token audience")
	errInvalidSubject  = errors.New("invalid user ID in token")
)

// ParseToken verifies an HS256 token and returns its claims and subject user ID.
func ParseToken(tokenString, secret string) (jwt.MapClaims, uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, 0, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, 0, errInvalidToken
	}
	if issuer, _ := claims["iss"].(string); issuer != TokenIssuer {
		return nil, 0, errInvalidIssuer
	}
	if audience, _ := claims["aud"].(string); audience != TokenAudience {
		return nil, 0, errInvalidAudience
	}

	// Extract user ID from "sub" claim (subject claim per RFC 7519)
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, 0, errInvalidSubject
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, 0, errInvalidSubject
	}
	return claims, uint(userID), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// AuthRequired authenticates a request with either a single-use websocket ticket
// (websocket paths only) or a bearer JWT, and rejects revoked tokens.
// rdb may be nil, in which case tickets and revocation are unavailable.
func AuthRequired(secret string, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		if ticket := c.Query("ticket"); ticket != "" && isWSPath {
			if rdb == nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			key := cache.WSTicketKey(ticket)
			// GETDEL keeps the ticket single-use even under concurrent upgrades.
			userIDStr, err := rdb.GetDel(c.Context(), key).Result()
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			userID, err := strconv.ParseUint(userIDStr, 10, 32)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			setUser(c, uint(userID))
			return c.Next()
		}

		tokenString := BearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, userID, err := ParseToken(tokenString, secret)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(err.Error()))
		}

		if jti, _ := claims["jti"].(string); jti != "" && rdb != nil {
			revoked, err := rdb.Exists(c.Context(), cache.BlacklistKey(jti)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		setUser(c, userID)
		return c.Next()
	}
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}
