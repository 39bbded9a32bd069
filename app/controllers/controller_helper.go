package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// requestOrigin returns the Origin header when it is one of allowed, else
// the first allowed origin. Redirect URLs are never built from an origin the
// CORS policy would refuse.
func requestOrigin(c *fiber.Ctx, allowed []string) string {
	origin := strings.TrimRight(strings.TrimSpace(c.Get(fiber.HeaderOrigin)), "/")
	for _, a := range allowed {
		if origin != "" && strings.EqualFold(origin, strings.TrimRight(a, "/")) {
			return origin
		}
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return ""
}
