package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/utils"
)

// AttachJWTLocals exposes the caller's email and role as plain locals.
func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*utils.Claims)
		if !ok || claims == nil {
			return fiber.ErrUnauthorized
		}

		email := strings.ToLower(strings.TrimSpace(claims.Email))
		role := models.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
		if email == "" || !role.Valid() {
			return fiber.ErrUnauthorized
		}

		c.Locals("email", email)
		c.Locals("role", role)
		return c.Next()
	}
}

func Email(c *fiber.Ctx) string {
	s, _ := c.Locals("email").(string)
	return s
}

func Role(c *fiber.Ctx) models.Role {
	r, _ := c.Locals("role").(models.Role)
	return r
}
