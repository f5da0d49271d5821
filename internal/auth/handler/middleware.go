package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ebuchanan1123/autopiece/internal/auth/domain"
	"github.com/ebuchanan1123/autopiece/internal/auth/service"
	"github.com/ebuchanan1123/autopiece/pkg/constant"
)

// Authenticate verifies the bearer access token and stores its claims in
// the request locals for downstream handlers.
func (h *AuthHandler) Authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "missing or invalid authorization header",
		})
	}

	claims, err := h.tokenService.VerifyAccessToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid or expired token",
		})
	}

	c.Locals(constant.ClaimsLocalKey, claims)

	return c.Next()
}

// RequireRole gates a route to the given roles. Must run after Authenticate.
func (h *AuthHandler) RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := claimsFromLocals(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}

		for _, role := range roles {
			if claims.Role == string(role) {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient permissions",
		})
	}
}

func claimsFromLocals(c *fiber.Ctx) *service.JWTCustomClaims {
	claims, _ := c.Locals(constant.ClaimsLocalKey).(*service.JWTCustomClaims)

	return claims
}
