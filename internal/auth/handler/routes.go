package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ebuchanan1123/autopiece/internal/auth/domain"
)

func RegisterRoutes(app *fiber.App, h *AuthHandler) {
	auth := app.Group("/api/v1/auth")
	auth.Post("/register-client", h.RegisterClient)
	auth.Post("/register-seller", h.RegisterSeller)
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
	auth.Post("/logout-all", h.Authenticate, h.LogoutAll)
	auth.Get("/me", h.Authenticate, h.Me)
	auth.Get("/sessions", h.Authenticate, h.ListSessions)
	auth.Delete("/sessions/:tokenId", h.Authenticate, h.RevokeSession)

	// Admin-only endpoints
	admin := app.Group("/api/v1/admin", h.Authenticate, h.RequireRole(domain.RoleAdmin))
	admin.Delete("/users/:id/sessions", h.ForceLogout)
	admin.Get("/users/:id/sessions", h.GetUserSessions)
}
