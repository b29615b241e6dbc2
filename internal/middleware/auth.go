// Package middleware holds fiber middleware shared by the API routes.
package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// UserIDKey is the fiber.Ctx locals key holding the authenticated user id.
const UserIDKey = "user_id"

var errMissingToken = errors.New("missing bearer token")

// Auth verifies an HS256 bearer token and stores its subject as the user id.
// An empty issuer skips the issuer check.
func Auth(secret, issuer string) fiber.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		userID, err := subject(parser, key, c.Get(fiber.HeaderAuthorization))
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("unauthorized request")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}
		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

func subject(parser *jwt.Parser, key []byte, header string) (string, error) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}

	var claims jwt.RegisteredClaims
	if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", jwt.ErrTokenInvalidClaims)
	}
	return claims.Subject, nil
}

// UserID returns the authenticated user id, or "" outside Auth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
