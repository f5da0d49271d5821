package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ebuchanan1123/autopiece/config"
	"github.com/ebuchanan1123/autopiece/internal/auth/domain"
	"github.com/ebuchanan1123/autopiece/internal/auth/dto"
	"github.com/ebuchanan1123/autopiece/internal/auth/service"
	autherror "github.com/ebuchanan1123/autopiece/internal/errors"
	"github.com/ebuchanan1123/autopiece/pkg/constant"
)

type AuthHandler struct {
	userService  *service.UserService
	tokenService service.TokenGenerator
	cfg          *config.Config
}

func NewAuthHandler(userService *service.UserService, tokenService service.TokenGenerator, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokenService: tokenService,
		cfg:          cfg,
	}
}

func (h *AuthHandler) RegisterClient(c *fiber.Ctx) error {
	return h.register(c, domain.RoleClient)
}

func (h *AuthHandler) RegisterSeller(c *fiber.Ctx) error {
	return h.register(c, domain.RoleSeller)
}

func (h *AuthHandler) register(c *fiber.Ctx, role domain.Role) error {
	var input dto.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid input",
		})
	}
	if err := input.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	input.IPAddress = clientIP(c)
	input.UserAgent = c.Get(fiber.HeaderUserAgent)

	out, err := h.userService.Register(c.Context(), input, role)
	if err != nil {
		return h.mapError(c, err)
	}

	h.setRefreshCookie(c, out.RefreshCookie)

	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid input",
		})
	}

	input.IPAddress = clientIP(c)
	input.UserAgent = c.Get(fiber.HeaderUserAgent)

	out, err := h.userService.Login(c.Context(), input)
	if err != nil {
		return h.mapError(c, err)
	}

	h.setRefreshCookie(c, out.RefreshCookie)

	return c.Status(fiber.StatusOK).JSON(out)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	cookieValue := c.Cookies(constant.RefreshCookieName)
	if cookieValue == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials",
		})
	}

	input := dto.RefreshInput{
		CookieValue: cookieValue,
		IPAddress:   clientIP(c),
		UserAgent:   c.Get(fiber.HeaderUserAgent),
	}

	out, err := h.userService.Refresh(c.Context(), input)
	if err != nil {
		return h.mapError(c, err)
	}

	h.setRefreshCookie(c, out.RefreshCookie)

	return c.Status(fiber.StatusOK).JSON(out)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	cookieValue := c.Cookies(constant.RefreshCookieName)

	h.clearRefreshCookie(c)

	if err := h.userService.Logout(c.Context(), cookieValue); err != nil {
		return h.mapError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	claims := claimsFromLocals(c)

	h.clearRefreshCookie(c)

	if err := h.userService.LogoutAll(c.Context(), claims.Subject); err != nil {
		return h.mapError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims := claimsFromLocals(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":    claims.Subject,
		"email": claims.Email,
		"role":  claims.Role,
	})
}

func (h *AuthHandler) ListSessions(c *fiber.Ctx) error {
	claims := claimsFromLocals(c)

	sessions, err := h.userService.ListSessions(c.Context(), claims.Subject)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"sessions": sessions})
}

func (h *AuthHandler) RevokeSession(c *fiber.Ctx) error {
	claims := claimsFromLocals(c)

	if err := h.userService.RevokeSession(c.Context(), claims.Subject, c.Params("tokenId")); err != nil {
		return h.mapError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// ForceLogout revokes every session of the targeted user. Admin only.
func (h *AuthHandler) ForceLogout(c *fiber.Ctx) error {
	if err := h.userService.LogoutAll(c.Context(), c.Params("id")); err != nil {
		return h.mapError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// GetUserSessions lists the targeted user's active sessions. Admin only.
func (h *AuthHandler) GetUserSessions(c *fiber.Ctx) error {
	sessions, err := h.userService.ListSessions(c.Context(), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"sessions": sessions})
}

// mapError translates the service taxonomy into transport responses.
// Credential-class failures all collapse into the same generic 401 so a
// caller cannot distinguish reuse detection from ordinary invalidity.
func (h *AuthHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, autherror.ErrEmailAlreadyInUse):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrTooManyLoginAttempts):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "too many attempts, try again later"})
	case errors.Is(err, autherror.ErrReuseDetected),
		errors.Is(err, autherror.ErrRefreshTokenExpired),
		errors.Is(err, autherror.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	case errors.Is(err, autherror.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient permissions"})
	case errors.Is(err, autherror.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service temporarily unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     constant.RefreshCookieName,
		Value:    value,
		Path:     constant.RefreshCookiePath,
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   int(h.cfg.Session.RefreshTokenTTL / time.Second),
		HTTPOnly: true,
		Secure:   h.cfg.Cookie.Secure,
		SameSite: sameSiteValue(h.cfg.Cookie.SameSite),
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     constant.RefreshCookieName,
		Value:    "",
		Path:     constant.RefreshCookiePath,
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cfg.Cookie.Secure,
		SameSite: sameSiteValue(h.cfg.Cookie.SameSite),
	})
}

func sameSiteValue(configured string) string {
	switch configured {
	case "strict":
		return fiber.CookieSameSiteStrictMode
	case "none":
		return fiber.CookieSameSiteNoneMode
	default:
		return fiber.CookieSameSiteLaxMode
	}
}

// clientIP prefers the first X-Forwarded-For entry when behind a proxy.
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}

		return strings.TrimSpace(forwarded)
	}

	return c.IP()
}
