package api

import (
	"errors"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/auth"

	"github.com/gofiber/fiber/v2"
)

// CookieSettings controls the session cookie issued on signup and login.
type CookieSettings struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type AuthHandler struct {
	service *auth.Service
	cookie  CookieSettings
}

func NewAuthHandler(service *auth.Service, cookie CookieSettings) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "session"
	}
	if cookie.TTL <= 0 {
		cookie.TTL = service.SessionTTL()
	}
	return &AuthHandler{service: service, cookie: cookie}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	_, session, err := h.service.Signup(c.UserContext(), auth.SignupParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return writeError(c, authError(err))
	}

	h.setSessionCookie(c, session)
	return c.JSON(fiber.Map{"success": true, "redirect": "/app"})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	_, session, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, authError(err))
	}

	h.setSessionCookie(c, session)
	return c.JSON(fiber.Map{"success": true, "redirect": "/app"})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := auth.GetSessionToken(c)
	if token == "" {
		token = c.Cookies(h.cookie.Name)
	}

	if err := h.service.Logout(c.UserContext(), token); err != nil {
		return writeError(c, models.NewPersistenceError(err))
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"success": true, "redirect": "/"})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := auth.GetUser(c)
	if user == nil {
		return writeError(c, models.NewUnauthenticatedError())
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, session *models.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func authError(err error) error {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return models.NewValidationError("Email and password required", err)
	case errors.Is(err, auth.ErrEmailTaken):
		return models.NewValidationError("Email already registered", err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		appErr := models.NewUnauthenticatedError()
		appErr.Message = "Invalid email or password"
		return appErr
	default:
		return models.NewPersistenceError(err)
	}
}
