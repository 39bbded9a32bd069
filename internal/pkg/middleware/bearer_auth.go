package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fit9to5/billing-api/internal/pkg/auth"
	"github.com/fit9to5/billing-api/internal/pkg/usercontext"
)

// BearerAuthMiddleware authenticates requests carrying an identity token in
// the Authorization header.
func BearerAuthMiddleware(verifier auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		identity, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing bearer token"})
			}
			log.Warnf("[Auth] rejected bearer token for %s %s: %v", c.Method(), c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid bearer token"})
		}

		usercontext.Set(c, usercontext.UserContext{
			Subject:         identity.Subject,
			Email:           identity.Email,
			IsAuthenticated: true,
		})
		return c.Next()
	}
}

// RequireSubject rejects requests that reached a protected handler without an
// authenticated subject.
func RequireSubject(c *fiber.Ctx) error {
	if !usercontext.GetUserContext(c).IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}
